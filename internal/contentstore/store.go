// Package contentstore persists binary artifacts extracted during ingestion
// (figure images, table exports) under an output root, with content-addressed
// deduplication for images: two byte-identical images anywhere in the corpus
// share exactly one stored file and one manifest row.
//
// The hash manifest lives in a SQLite database next to the artifacts, so
// deduplication survives process restarts and repeated ingestion runs stay
// idempotent. The insert-and-check path is serialized by a mutex — it is the
// single shared mutable resource of the ingestion pass.
package contentstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ManifestName is the file name of the SQLite hash manifest under the root.
const ManifestName = "manifest.db"

// Store is the content-addressed artifact store. It is safe for concurrent
// use by multiple ingestion workers.
type Store struct {
	// mu serializes hash insert-and-check operations so two workers never
	// both persist the same duplicate image.
	mu sync.Mutex
	// db is the manifest database.
	db *sql.DB
	// figureDir is where deduplicated images are written.
	figureDir string
	// tableDir is where table TSV exports are written.
	tableDir string
}

// Open creates (if needed) the figures/ and tables/ directories under root
// and opens the hash manifest. Pass the output root, not the subdirectories.
func Open(root string) (*Store, error) {
	figDir := filepath.Join(root, "figures")
	tabDir := filepath.Join(root, "tables")
	for _, dir := range []string{figDir, tabDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("contentstore: create %s: %w", dir, err)
		}
	}

	// Single writer connection avoids SQLITE_BUSY under concurrent ingestion.
	dsn := filepath.Join(root, ManifestName) + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("contentstore: open manifest: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, figureDir: figDir, tableDir: tabDir}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the manifest schema if it does not already exist.
func (s *Store) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS artifacts (
    hash       TEXT PRIMARY KEY,  -- sha256 hex of the artifact bytes
    path       TEXT    NOT NULL,
    doc        TEXT    NOT NULL,
    page       INTEGER NOT NULL,
    created_at INTEGER NOT NULL   -- Unix timestamp (seconds)
);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("contentstore: migrate: %w", err)
	}
	return nil
}

// FigureDir returns the directory deduplicated images are written to.
func (s *Store) FigureDir() string { return s.figureDir }

// TableDir returns the directory table exports are written to.
func (s *Store) TableDir() string { return s.tableDir }

// PutImage stores an image under figures/name unless a byte-identical image
// is already recorded. It returns the stored path (the existing one on a
// duplicate) and created=false when the bytes were seen before. Doc and page
// record the first-seen provenance in the manifest.
func (s *Store) PutImage(ctx context.Context, name string, data []byte, doc string, page int) (string, bool, error) {
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()

	var existing string
	err := s.db.QueryRowContext(ctx, `SELECT path FROM artifacts WHERE hash = ?`, hash).Scan(&existing)
	switch {
	case err == nil:
		return existing, false, nil
	case err != sql.ErrNoRows:
		return "", false, fmt.Errorf("contentstore: lookup hash: %w", err)
	}

	path := filepath.Join(s.figureDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", false, fmt.Errorf("contentstore: write %s: %w", path, err)
	}

	const q = `INSERT INTO artifacts (hash, path, doc, page, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, hash, path, doc, page, time.Now().Unix()); err != nil {
		// Keep the file and surface the error — a manifest gap means the
		// next run may re-store, which is safe but not silent.
		return "", false, fmt.Errorf("contentstore: record %s: %w", name, err)
	}

	return path, true, nil
}

// PutTable writes a table export under tables/name and returns its path.
// Table exports are keyed by deterministic names ({doc}_p{page}_t{n}.tsv),
// so re-ingestion overwrites in place rather than accumulating.
func (s *Store) PutTable(name, text string) (string, error) {
	path := filepath.Join(s.tableDir, name)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("contentstore: write %s: %w", path, err)
	}
	return path, nil
}

// Close releases the manifest database.
func (s *Store) Close() error {
	return s.db.Close()
}
