// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

// Package mcp loads Model Context Protocol server definitions and exposes the tools of those
// servers to agents.
package mcp

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"

	"github.com/NickB03/vana/config"
)

// Transports understood by [Connect].
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
	TransportHTTP  = "http"
)

// ErrInvalidConfig is wrapped by every validation error from [LoadConfig].
var ErrInvalidConfig = errors.New("invalid mcp config")

// ServerConfig describes one MCP server.
type ServerConfig struct {
	Name      string            `json:"-" yaml:"-"`
	Transport string            `json:"type,omitempty" yaml:"type,omitempty"`
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Disabled  bool              `json:"disabled,omitempty" yaml:"disabled,omitempty"`

	// Tools restricts which of the server's tools are exposed. Empty exposes all.
	Tools []string `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// Enabled reports whether the server should be connected.
func (c ServerConfig) Enabled() bool {
	return !c.Disabled
}

// Allows reports whether the tool named name is exposed.
func (c ServerConfig) Allows(name string) bool {
	return len(c.Tools) == 0 || slices.Contains(c.Tools, name)
}

type file struct {
	Servers map[string]ServerConfig `json:"mcpServers" yaml:"mcpServers"`
}

// LoadConfig reads a .mcp.json style file, or YAML when the extension is .yaml or .yml.
// ${VAR} references are expanded from the environment. Servers are returned sorted by name.
func LoadConfig(path string) ([]ServerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mcp config: %w", err)
	}
	return ParseConfig(data, filepath.Ext(path), os.LookupEnv)
}

// ParseConfig decodes data according to ext and validates the result.
func ParseConfig(data []byte, ext string, lookup config.LookupFunc) ([]ServerConfig, error) {
	data = config.Expand(data, lookup)

	var f file
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	default:
		if err := sonic.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	names := make([]string, 0, len(f.Servers))
	for name := range f.Servers {
		names = append(names, name)
	}
	slices.Sort(names)

	servers := make([]ServerConfig, 0, len(names))
	var errs []error
	for _, name := range names {
		s := f.Servers[name]
		s.Name = name
		s.Transport = normalizeTransport(s)
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		servers = append(servers, s)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return servers, nil
}

func normalizeTransport(s ServerConfig) string {
	switch t := strings.ToLower(s.Transport); t {
	case "":
		if s.Command != "" {
			return TransportStdio
		}
		if s.URL != "" {
			return TransportHTTP
		}
		return ""
	case "streamable-http", "streamable_http", "streamablehttp":
		return TransportHTTP
	default:
		return t
	}
}

// Validate checks that the transport has what it needs.
func (c ServerConfig) Validate() error {
	switch c.Transport {
	case TransportStdio:
		if c.Command == "" {
			return fmt.Errorf("%w: server %q: stdio transport needs a command", ErrInvalidConfig, c.Name)
		}
	case TransportSSE, TransportHTTP:
		u, err := url.Parse(c.URL)
		if c.URL == "" || err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: server %q: %s transport needs an absolute url", ErrInvalidConfig, c.Name, c.Transport)
		}
	default:
		return fmt.Errorf("%w: server %q: unknown transport %q", ErrInvalidConfig, c.Name, c.Transport)
	}
	return nil
}
