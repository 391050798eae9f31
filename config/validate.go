// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate reports every problem in c. The returned error wraps [ErrInvalid].
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if c.Model.Name == "" {
		add("model.name is required")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		add("server.port %d out of range", c.Server.Port)
	}
	switch c.Server.Mode {
	case ModeLocal:
	case ModeProxy:
		if c.Server.RemoteURL == "" {
			add("server.remote_url is required in %s mode", ModeProxy)
		} else if u, err := url.Parse(c.Server.RemoteURL); err != nil || u.Scheme == "" || u.Host == "" {
			add("server.remote_url %q is not an absolute URL", c.Server.RemoteURL)
		}
	default:
		add("server.mode %q must be %q or %q", c.Server.Mode, ModeLocal, ModeProxy)
	}

	switch c.Vector.Backend {
	case BackendChromem:
	case BackendVertex:
		if c.Project == "" {
			add("project is required for the %s vector backend", BackendVertex)
		}
		if c.Vector.Index == "" || c.Vector.IndexEndpoint == "" || c.Vector.DeployedIndexID == "" {
			add("vector.index, vector.index_endpoint and vector.deployed_index_id are required for the %s vector backend", BackendVertex)
		}
		if c.Docs.Bucket == "" {
			add("docs.bucket is required for the %s vector backend", BackendVertex)
		}
	default:
		add("vector.backend %q must be %q or %q", c.Vector.Backend, BackendChromem, BackendVertex)
	}
	if c.Vector.ChunkSize <= 0 || c.Vector.ChunkOverlap < 0 || c.Vector.ChunkOverlap >= c.Vector.ChunkSize {
		add("vector.chunk_overlap must be in [0, chunk_size)")
	}

	switch c.Sandbox.Backend {
	case SandboxContainer, SandboxLocal:
	default:
		add("sandbox.backend %q must be %q or %q", c.Sandbox.Backend, SandboxLocal, SandboxContainer)
	}

	return errors.Join(errs...)
}
