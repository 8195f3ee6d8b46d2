package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Default embedding models and dimensions per backend.
const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOpenAIModel = "text-embedding-3-small"

	// defaultOllamaDimensions is the output dimension of nomic-embed-text.
	// Other Ollama models may differ — override with EMBEDDING_DIMENSIONS.
	defaultOllamaDimensions = 768
	// defaultOpenAIDimensions is the output dimension of text-embedding-3-small.
	defaultOpenAIDimensions = 1536
	// fallbackDimensions is used when no embedding backend is configured and
	// records are indexed with placeholder vectors.
	fallbackDimensions = 384
)

// Rate limiting defaults applied to every constructed embedder so batch
// ingestion cannot overrun the backend. Override via EMBEDDING_RATE_LIMIT /
// EMBEDDING_RATE_BURST.
const (
	defaultRateLimit = 8.0
	defaultRateBurst = 16
)

// DefaultDimensions returns the embedding vector size for the resolved
// backend. Callers that pre-configure a vector store (collection creation)
// should use this rather than hardcoding a value. EMBEDDING_DIMENSIONS
// always takes precedence when set.
func DefaultDimensions() int {
	if v := getEnvInt("EMBEDDING_DIMENSIONS", 0); v > 0 {
		return v
	}
	switch getEnvOrDefault("EMBEDDING_PROVIDER", "ollama") {
	case "openai":
		return defaultOpenAIDimensions
	case "none", "disabled":
		return fallbackDimensions
	default:
		return defaultOllamaDimensions
	}
}

// NewFromEnv constructs an Embedder from environment variables, wrapped in a
// token-bucket rate limiter. A nil Embedder with a nil error means the
// capability is deliberately unavailable (EMBEDDING_PROVIDER=none); the
// pipeline then degrades to lexical search and placeholder index vectors.
//
// Resolution:
//
//	EMBEDDING_PROVIDER    ollama (default) | openai | none
//	EMBEDDING_MODEL       overrides the backend's default model
//	EMBEDDING_ENDPOINT    overrides the backend's default endpoint
//	EMBEDDING_API_KEY     API key (openai; falls back to OPENAI_API_KEY)
//	EMBEDDING_DIMENSIONS  overrides the vector size (openai only)
//	EMBEDDING_RATE_LIMIT  sustained requests/second (default 8)
//	EMBEDDING_RATE_BURST  maximum burst (default 16)
func NewFromEnv(log *slog.Logger) (Embedder, error) {
	backend := getEnvOrDefault("EMBEDDING_PROVIDER", "ollama")

	var inner Embedder
	switch backend {
	case "none", "disabled":
		log.Warn("embedder: embedding disabled — retrieval degrades to lexical lookup")
		return nil, nil

	case "ollama":
		host := getEnv("EMBEDDING_ENDPOINT")
		if host == "" {
			host = getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		}
		inner = NewOllamaEmbedder(host, getEnvOrDefault("EMBEDDING_MODEL", defaultOllamaModel))

	case "openai":
		apiKey := getEnv("EMBEDDING_API_KEY")
		if apiKey == "" {
			apiKey = getEnv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("embedder: openai requires OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		baseURL := getEnv("EMBEDDING_ENDPOINT")
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		inner = NewOpenAIEmbedder(&OpenAIConfig{
			BaseURL:    baseURL,
			APIKey:     apiKey,
			Model:      getEnvOrDefault("EMBEDDING_MODEL", defaultOpenAIModel),
			Dimensions: getEnvInt("EMBEDDING_DIMENSIONS", defaultOpenAIDimensions),
		})

	default:
		return nil, fmt.Errorf("embedder: unknown backend %q — valid values: ollama, openai, none", backend)
	}

	rps := getEnvFloat("EMBEDDING_RATE_LIMIT", defaultRateLimit)
	burst := getEnvInt("EMBEDDING_RATE_BURST", defaultRateBurst)
	return NewRateLimited(inner, rps, burst), nil
}

// getEnv returns the value of the named environment variable, or empty string.
func getEnv(key string) string {
	return os.Getenv(key)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if the variable is unset, empty, or not parseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
