// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"regexp"
	"strconv"
	"time"
)

// LookupFunc resolves an environment variable, like [os.LookupEnv].
type LookupFunc func(key string) (string, bool)

// ${VAR:-default} and ${VAR}
var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Expand replaces ${VAR} and ${VAR:-default} references in data.
// Unset variables without a default expand to the empty string.
func Expand(data []byte, lookup LookupFunc) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if v, ok := lookup(string(parts[1])); ok && v != "" {
			return []byte(v)
		}
		return parts[2]
	})
}

// ApplyEnv overrides fields from well-known environment variables.
func (c *Config) ApplyEnv(lookup LookupFunc) {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			if b, err := strconv.ParseBool(v); err == nil {
				*dst = b
			}
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok {
			if d, err := time.ParseDuration(v); err == nil {
				*dst = d
			}
		}
	}

	str("VANA_ENV", &c.Environment)
	str("GOOGLE_CLOUD_PROJECT", &c.Project)
	str("GOOGLE_CLOUD_LOCATION", &c.Location)

	str("VANA_MODEL", &c.Model.Name)
	str("VANA_FALLBACK_MODEL", &c.Model.Fallback)
	str("ANTHROPIC_API_KEY", &c.Model.AnthropicAPIKey)
	str("GOOGLE_API_KEY", &c.Model.GoogleAPIKey)

	num("PORT", &c.Server.Port)
	num("VANA_PORT", &c.Server.Port)
	str("VANA_MODE", &c.Server.Mode)
	str("VANA_REMOTE_URL", &c.Server.RemoteURL)
	str("VANA_AUDIENCE", &c.Server.Audience)
	boolean("VANA_USE_ID_TOKEN", &c.Server.UseIDToken)
	dur("VANA_REQUEST_TIMEOUT", &c.Server.RequestTimeout)

	str("VANA_VECTOR_BACKEND", &c.Vector.Backend)
	str("VANA_CHROMA_PATH", &c.Vector.ChromaPath)
	str("VECTOR_SEARCH_INDEX", &c.Vector.Index)
	str("VECTOR_SEARCH_ENDPOINT", &c.Vector.IndexEndpoint)
	str("VECTOR_SEARCH_DEPLOYED_INDEX_ID", &c.Vector.DeployedIndexID)
	str("VECTOR_SEARCH_PUBLIC_DOMAIN", &c.Vector.PublicDomain)
	str("VECTOR_SEARCH_DISTANCE_MEASURE", &c.Vector.DistanceMeasure)
	str("VANA_EMBEDDING_MODEL", &c.Vector.EmbeddingModel)

	str("RAG_CORPUS", &c.RAG.Corpus)
	str("VANA_DOCS_BUCKET", &c.Docs.Bucket)

	str("VANA_SANDBOX", &c.Sandbox.Backend)
	boolean("VANA_SANDBOX_ALLOW_UNSAFE", &c.Sandbox.AllowUnsafe)

	str("VANA_MCP_CONFIG", &c.MCP.ConfigPath)
}
