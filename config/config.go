// Copyright 2025 The Go A2A Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Server modes.
const (
	ModeLocal = "local"
	ModeProxy = "proxy"
)

// Vector store backends.
const (
	BackendChromem = "chromem"
	BackendVertex  = "vertex"
)

// Sandbox backends.
const (
	SandboxLocal     = "local"
	SandboxContainer = "container"
)

// Config is the complete VANA runtime configuration.
type Config struct {
	Environment string `yaml:"environment"`
	Project     string `yaml:"project"`
	Location    string `yaml:"location"`

	Model      ModelConfig      `yaml:"model"`
	Server     ServerConfig     `yaml:"server"`
	Cache      CacheConfig      `yaml:"cache"`
	Vector     VectorConfig     `yaml:"vector"`
	RAG        RAGConfig        `yaml:"rag"`
	Docs       DocsConfig       `yaml:"docs"`
	Sandbox    SandboxConfig    `yaml:"sandbox"`
	MCP        MCPConfig        `yaml:"mcp"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// ModelConfig selects the primary and fallback language models.
type ModelConfig struct {
	Name            string        `yaml:"name"`
	Fallback        string        `yaml:"fallback"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key"`
	GoogleAPIKey    string        `yaml:"google_api_key"`
	MaxRetries      int           `yaml:"max_retries"`
	RetryDelay      time.Duration `yaml:"retry_delay"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port           int           `yaml:"port"`
	Mode           string        `yaml:"mode"`
	RemoteURL      string        `yaml:"remote_url"`
	Audience       string        `yaml:"audience"`
	UseIDToken     bool          `yaml:"use_id_token"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// CacheSize is the capacity and time to live of one named cache.
type CacheSize struct {
	MaxSize int           `yaml:"max_size"`
	TTL     time.Duration `yaml:"ttl"`
}

// CacheConfig configures the named caches.
type CacheConfig struct {
	Search          CacheSize     `yaml:"search"`
	Document        CacheSize     `yaml:"document"`
	Analysis        CacheSize     `yaml:"analysis"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// VectorConfig configures the vector store and embeddings.
type VectorConfig struct {
	Backend         string `yaml:"backend"`
	Collection      string `yaml:"collection"`
	ChromaPath      string `yaml:"chroma_path"`
	Index           string `yaml:"index"`
	IndexEndpoint   string `yaml:"index_endpoint"`
	DeployedIndexID string `yaml:"deployed_index_id"`
	PublicDomain    string `yaml:"public_domain"`
	DistanceMeasure string `yaml:"distance_measure"`
	EmbeddingModel  string `yaml:"embedding_model"`
	Dimensions      int    `yaml:"dimensions"`
	ChunkSize       int    `yaml:"chunk_size"`
	ChunkOverlap    int    `yaml:"chunk_overlap"`
}

// RAGConfig configures Vertex AI RAG retrieval.
type RAGConfig struct {
	Corpus       string  `yaml:"corpus"`
	TopK         int     `yaml:"top_k"`
	Threshold    float64 `yaml:"threshold"`
	ChunkSize    int     `yaml:"chunk_size"`
	ChunkOverlap int     `yaml:"chunk_overlap"`
}

// DocsConfig configures the GCS document bucket.
type DocsConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}

// SandboxConfig configures code execution.
type SandboxConfig struct {
	Backend        string        `yaml:"backend"`
	AllowUnsafe    bool          `yaml:"allow_unsafe"`
	MaxMemoryMB    int           `yaml:"max_memory_mb"`
	MaxCPUPercent  float64       `yaml:"max_cpu_percent"`
	MaxProcesses   int           `yaml:"max_processes"`
	MaxOpenFiles   int           `yaml:"max_open_files"`
	Timeout        time.Duration `yaml:"timeout"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

// MCPConfig points at the MCP server configuration file.
type MCPConfig struct {
	ConfigPath string `yaml:"config_path"`
}

// MonitoringConfig configures rendered monitoring templates.
type MonitoringConfig struct {
	ScrapeInterval time.Duration `yaml:"scrape_interval"`
	ErrorRate      float64       `yaml:"error_rate"`
	LatencyP95     time.Duration `yaml:"latency_p95"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Environment: "development",
		Location:    "us-central1",
		Model: ModelConfig{
			Name:       "gemini-2.0-flash",
			Fallback:   "claude-sonnet-4-20250514",
			MaxRetries: 3,
			RetryDelay: time.Second,
		},
		Server: ServerConfig{
			Port:           8080,
			Mode:           ModeLocal,
			RequestTimeout: 60 * time.Second,
		},
		Cache: CacheConfig{
			Search:          CacheSize{MaxSize: 500, TTL: 30 * time.Minute},
			Document:        CacheSize{MaxSize: 200, TTL: 2 * time.Hour},
			Analysis:        CacheSize{MaxSize: 100, TTL: time.Hour},
			CleanupInterval: 5 * time.Minute,
		},
		Vector: VectorConfig{
			Backend:        BackendChromem,
			Collection:     "vana-knowledge",
			EmbeddingModel: "text-embedding-005",
			Dimensions:     768,
			ChunkSize:      1000,
			ChunkOverlap:   200,
		},
		RAG: RAGConfig{
			TopK:         5,
			Threshold:    0.5,
			ChunkSize:    512,
			ChunkOverlap: 100,
		},
		Docs: DocsConfig{Prefix: "knowledge/"},
		Sandbox: SandboxConfig{
			Backend:        SandboxContainer,
			MaxMemoryMB:    512,
			MaxCPUPercent:  80,
			MaxProcesses:   10,
			MaxOpenFiles:   100,
			Timeout:        30 * time.Second,
			SampleInterval: 100 * time.Millisecond,
		},
		MCP: MCPConfig{ConfigPath: ".mcp.json"},
		Monitoring: MonitoringConfig{
			ScrapeInterval: 15 * time.Second,
			ErrorRate:      0.05,
			LatencyP95:     2 * time.Second,
		},
	}
}

// Load builds a [Config] from defaults, the YAML file at path (optional), .env files and
// the process environment, in increasing order of precedence.
func Load(path string) (*Config, error) {
	if err := LoadDotEnv(path); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := cfg.decode(data, os.LookupEnv); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)

	return cfg, nil
}

func (c *Config) decode(data []byte, lookup LookupFunc) error {
	dec := yaml.NewDecoder(bytes.NewReader(Expand(data, lookup)))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadDotEnv loads .env from the config file's directory and the working directory.
// Variables already present in the environment are not overwritten.
func LoadDotEnv(configPath string) error {
	files := []string{".env"}
	if configPath != "" {
		if abs, err := filepath.Abs(configPath); err == nil {
			files = append([]string{filepath.Join(filepath.Dir(abs), ".env")}, files...)
		}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}
