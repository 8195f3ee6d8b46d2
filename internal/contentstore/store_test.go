package contentstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestPutImageDeduplicates(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	data := []byte("fake-png-bytes")

	path1, created, err := s.PutImage(ctx, "reportA_p1_f1.png", data, "reportA", 1)
	if err != nil {
		t.Fatalf("PutImage() error = %v", err)
	}
	if !created {
		t.Fatal("first PutImage() created = false, want true")
	}

	// Same bytes under a different name and document: must dedupe to the
	// already stored path without writing a second file.
	path2, created, err := s.PutImage(ctx, "reportB_p7_f2.png", data, "reportB", 7)
	if err != nil {
		t.Fatalf("second PutImage() error = %v", err)
	}
	if created {
		t.Error("second PutImage() created = true, want false")
	}
	if path2 != path1 {
		t.Errorf("duplicate path = %q, want %q", path2, path1)
	}

	entries, err := os.ReadDir(s.FigureDir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("figure dir has %d files, want 1", len(entries))
	}
}

func TestPutImageDistinctBytes(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	if _, created, err := s.PutImage(ctx, "a.png", []byte("one"), "a", 1); err != nil || !created {
		t.Fatalf("PutImage(one) = created %v, err %v", created, err)
	}
	if _, created, err := s.PutImage(ctx, "b.png", []byte("two"), "a", 1); err != nil || !created {
		t.Fatalf("PutImage(two) = created %v, err %v", created, err)
	}

	entries, err := os.ReadDir(s.FigureDir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("figure dir has %d files, want 2", len(entries))
	}
}

func TestDedupSurvivesReopen(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	ctx := context.Background()
	data := []byte("persistent-bytes")

	s, err := Open(root)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, created, err := s.PutImage(ctx, "doc_p1_f1.png", data, "doc", 1); err != nil || !created {
		t.Fatalf("PutImage() = created %v, err %v", created, err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s2, err := Open(root)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	t.Cleanup(func() { _ = s2.Close() })

	_, created, err := s2.PutImage(ctx, "doc_p2_f1.png", data, "doc", 2)
	if err != nil {
		t.Fatalf("PutImage() after reopen error = %v", err)
	}
	if created {
		t.Error("PutImage() after reopen created = true, want false")
	}
}

func TestPutTable(t *testing.T) {
	t.Parallel()

	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	path, err := s.PutTable("doc_p3_t1.tsv", "year\tvalue\n2030\t42.5\n")
	if err != nil {
		t.Fatalf("PutTable() error = %v", err)
	}
	if filepath.Dir(path) != s.TableDir() {
		t.Errorf("table written to %q, want under %q", path, s.TableDir())
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "year\tvalue\n2030\t42.5\n" {
		t.Errorf("table content = %q", got)
	}
}
