package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadAppliesYAMLValues(t *testing.T) {
	// Clear all keys this test touches so a developer's environment cannot
	// interfere. t.Setenv also restores the originals afterwards.
	for _, key := range []string{"DATA_ROOT", "STORE_BACKEND", "QDRANT_HOST", "QDRANT_PORT", "EMBEDDING_PROVIDER", "MIN_FIGURE_WIDTH"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	path := writeConfig(t, `
data:
  root: /srv/decipher/data
store:
  backend: qdrant
  qdrant:
    host: vectors.internal
    port: 7334
embedding:
  provider: ollama
ingest:
  min_figure_width: 300
`)

	loaded, err := Load(path, testLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != path {
		t.Errorf("loaded path = %q, want %q", loaded, path)
	}

	want := map[string]string{
		"DATA_ROOT":          "/srv/decipher/data",
		"STORE_BACKEND":      "qdrant",
		"QDRANT_HOST":        "vectors.internal",
		"QDRANT_PORT":        "7334",
		"EMBEDDING_PROVIDER": "ollama",
		"MIN_FIGURE_WIDTH":   "300",
	}
	for key, val := range want {
		if got := os.Getenv(key); got != val {
			t.Errorf("%s = %q, want %q", key, got, val)
		}
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("QDRANT_HOST", "from-env")

	path := writeConfig(t, `
store:
  qdrant:
    host: from-yaml
`)
	if _, err := Load(path, testLogger()); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := os.Getenv("QDRANT_HOST"); got != "from-env" {
		t.Errorf("QDRANT_HOST = %q, env var must win over YAML", got)
	}
}

func TestLoadNoFile(t *testing.T) {
	t.Setenv("DECIPHER_CONFIG", "")
	os.Unsetenv("DECIPHER_CONFIG")

	loaded, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), testLogger())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded != "" {
		t.Errorf("loaded path = %q, want empty for missing file", loaded)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "store: [not: a: mapping")
	if _, err := Load(path, testLogger()); err == nil {
		t.Fatal("Load() error = nil, want parse error")
	}
}
