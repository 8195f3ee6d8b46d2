package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/sweet-cross/decipher-energy-scenarios/internal/index"
)

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

// newStore constructs the vector store selected by the --store flag, falling
// back to STORE_BACKEND and finally to qdrant. Qdrant connection parameters
// come from QDRANT_HOST, QDRANT_PORT, QDRANT_API_KEY, QDRANT_TLS.
func newStore(backend string, log *slog.Logger) (index.Store, error) {
	if backend == "" {
		backend = getEnvOrDefault("STORE_BACKEND", "qdrant")
	}
	switch backend {
	case "memory":
		log.Warn("store: using in-memory backend — indexed data is lost on exit")
		return index.NewMemoryStore(), nil
	case "qdrant":
		return index.NewQdrantStore(&index.QdrantConfig{
			Host:   getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:   getEnvInt("QDRANT_PORT", 6334),
			APIKey: os.Getenv("QDRANT_API_KEY"),
			UseTLS: os.Getenv("QDRANT_TLS") == "true",
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q — valid values: qdrant, memory", backend)
	}
}
