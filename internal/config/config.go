// Package config provides YAML-based configuration for decipher.
// Configuration is loaded with a layered precedence: defaults → YAML file →
// env vars. Environment variables always win, so env-driven deployments and
// .env files keep working unchanged.
//
// File search order:
//  1. --config CLI flag (explicit path)
//  2. DECIPHER_CONFIG environment variable
//  3. ~/.decipher/config.yaml
//  4. ./decipher.yaml
//
// If no file is found the system runs entirely from env vars.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration structure. Field names use yaml
// tags that mirror the env var naming (lowercase, underscored).
type Config struct {
	// Data configures the filesystem layout read and written by the pipeline.
	Data DataConfig `yaml:"data"`

	// Store configures the vector store backend.
	Store StoreConfig `yaml:"store"`

	// Embedding configures the injected embedding capability.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Ingest configures PDF ingestion thresholds and the optional
	// structural parser endpoint.
	Ingest IngestConfig `yaml:"ingest"`

	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`
}

// DataConfig holds the directory layout contract.
type DataConfig struct {
	// Root is the data root containing extracted/synthesis and
	// extracted/transformation dataset directories.
	Root string `yaml:"root"`
	// Reports is the directory containing *.pdf technical reports.
	Reports string `yaml:"reports"`
	// Output is the root for extracted artifacts (figures/, tables/).
	Output string `yaml:"output"`
}

// StoreConfig holds vector store settings.
type StoreConfig struct {
	// Backend selects the store implementation: qdrant or memory.
	Backend string `yaml:"backend"`
	// Qdrant holds Qdrant connection settings.
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds Qdrant connection settings.
type QdrantConfig struct {
	// Host is the Qdrant server hostname.
	Host string `yaml:"host"`
	// Port is the Qdrant gRPC port.
	Port int `yaml:"port"`
	// APIKey is the Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key"`
	// TLS enables TLS for the Qdrant connection.
	TLS bool `yaml:"tls"`
}

// EmbeddingConfig holds embedding capability settings.
type EmbeddingConfig struct {
	// Provider selects the backend: ollama, openai, or none (disabled).
	Provider string `yaml:"provider"`
	// Model is the embedding model name.
	Model string `yaml:"model"`
	// Dimensions overrides the embedding vector size.
	Dimensions int `yaml:"dimensions"`
	// APIKey is the embedding API key. Prefer env var EMBEDDING_API_KEY.
	APIKey string `yaml:"api_key"`
	// Endpoint is the embedding API endpoint.
	Endpoint string `yaml:"endpoint"`
	// RateLimit is the sustained embedding request rate (requests/second).
	RateLimit float64 `yaml:"rate_limit"`
	// RateBurst is the maximum embedding request burst.
	RateBurst int `yaml:"rate_burst"`
}

// IngestConfig holds PDF ingestion settings.
type IngestConfig struct {
	// MinFigureWidth is the minimum pixel width for extracted images.
	MinFigureWidth int `yaml:"min_figure_width"`
	// MinFigureHeight is the minimum pixel height for extracted images.
	MinFigureHeight int `yaml:"min_figure_height"`
	// MinFigureArea is the minimum pixel area for extracted images. Must be
	// at least MinFigureWidth × MinFigureHeight.
	MinFigureArea int `yaml:"min_figure_area"`
	// UnstructuredURL is the base URL of an Unstructured partition server.
	// Empty disables structural extraction (heuristics still run).
	UnstructuredURL string `yaml:"unstructured_url"`
	// UnstructuredAPIKey authenticates against a hosted partition server.
	// Prefer env var UNSTRUCTURED_API_KEY.
	UnstructuredAPIKey string `yaml:"unstructured_api_key"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is the log output format: json, text.
	Format string `yaml:"format"`
}

// envMapping maps YAML config fields to their corresponding env var names.
// Only non-empty YAML values are applied; env vars always take precedence.
var envMapping = []struct {
	envKey string
	value  func(*Config) string
}{
	{"DATA_ROOT", func(c *Config) string { return c.Data.Root }},
	{"REPORTS_DIR", func(c *Config) string { return c.Data.Reports }},
	{"OUTPUT_DIR", func(c *Config) string { return c.Data.Output }},
	{"STORE_BACKEND", func(c *Config) string { return c.Store.Backend }},
	{"QDRANT_HOST", func(c *Config) string { return c.Store.Qdrant.Host }},
	{"QDRANT_PORT", func(c *Config) string { return intStr(c.Store.Qdrant.Port) }},
	{"QDRANT_API_KEY", func(c *Config) string { return c.Store.Qdrant.APIKey }},
	{"QDRANT_TLS", func(c *Config) string { return boolStr(c.Store.Qdrant.TLS) }},
	{"EMBEDDING_PROVIDER", func(c *Config) string { return c.Embedding.Provider }},
	{"EMBEDDING_MODEL", func(c *Config) string { return c.Embedding.Model }},
	{"EMBEDDING_DIMENSIONS", func(c *Config) string { return intStr(c.Embedding.Dimensions) }},
	{"EMBEDDING_API_KEY", func(c *Config) string { return c.Embedding.APIKey }},
	{"EMBEDDING_ENDPOINT", func(c *Config) string { return c.Embedding.Endpoint }},
	{"EMBEDDING_RATE_LIMIT", func(c *Config) string { return floatStr(c.Embedding.RateLimit) }},
	{"EMBEDDING_RATE_BURST", func(c *Config) string { return intStr(c.Embedding.RateBurst) }},
	{"MIN_FIGURE_WIDTH", func(c *Config) string { return intStr(c.Ingest.MinFigureWidth) }},
	{"MIN_FIGURE_HEIGHT", func(c *Config) string { return intStr(c.Ingest.MinFigureHeight) }},
	{"MIN_FIGURE_AREA", func(c *Config) string { return intStr(c.Ingest.MinFigureArea) }},
	{"UNSTRUCTURED_API_URL", func(c *Config) string { return c.Ingest.UnstructuredURL }},
	{"UNSTRUCTURED_API_KEY", func(c *Config) string { return c.Ingest.UnstructuredAPIKey }},
	{"LOG_LEVEL", func(c *Config) string { return c.Logging.Level }},
	{"LOG_FORMAT", func(c *Config) string { return c.Logging.Format }},
}

// Load reads a YAML config file and applies non-empty values as environment
// variables. Existing env vars are never overwritten (env always wins).
// Returns the path that was loaded, or empty string if no file was found.
func Load(explicitPath string, log *slog.Logger) (string, error) {
	path := resolveConfigPath(explicitPath)
	if path == "" {
		log.Debug("config: no YAML config file found, using env vars only")
		return "", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return "", fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	applied := 0
	for _, m := range envMapping {
		yamlVal := m.value(&cfg)
		if yamlVal == "" {
			continue
		}
		if os.Getenv(m.envKey) != "" {
			continue // env var already set — do not override
		}
		os.Setenv(m.envKey, yamlVal)
		applied++
	}

	log.Info("config: loaded YAML config",
		slog.String("path", path),
		slog.Int("keys_applied", applied),
	)

	return path, nil
}

// resolveConfigPath returns the first config file path that exists.
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	if envPath := os.Getenv("DECIPHER_CONFIG"); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		p := filepath.Join(home, ".decipher", "config.yaml")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	if _, err := os.Stat("decipher.yaml"); err == nil {
		return "decipher.yaml"
	}

	return ""
}

// intStr converts an int to string, returning "" for zero values.
func intStr(v int) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%d", v)
}

// floatStr converts a float64 to string, returning "" for zero values.
func floatStr(v float64) string {
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%g", v)
}

// boolStr converts a bool to string, returning "" for false.
func boolStr(v bool) string {
	if !v {
		return ""
	}
	return "true"
}
