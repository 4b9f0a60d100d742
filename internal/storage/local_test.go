package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalStore_SaveAndLocalPath(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)

	data := []byte("file,turns\na.mp3,3\n")
	if err := s.Save(context.Background(), "summary_all_audios.csv", data, "text/csv"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	path := s.LocalPath("summary_all_audios.csv")
	if path == "" {
		t.Fatal("LocalPath returned empty for saved report")
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved report: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("content = %q, want %q", got, data)
	}

	// No stray temp files left behind.
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("output dir has %d entries, want 1", len(entries))
	}
}

func TestLocalStore_SaveCreatesSubdirs(t *testing.T) {
	dir := t.TempDir()
	s := NewLocalStore(dir)

	if err := s.Save(context.Background(), filepath.Join("2026-08-25", "a_turns.csv"), []byte("x"), "text/csv"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if s.LocalPath(filepath.Join("2026-08-25", "a_turns.csv")) == "" {
		t.Error("nested report not found")
	}
}

func TestLocalStore_LocalPathMissing(t *testing.T) {
	s := NewLocalStore(t.TempDir())
	if got := s.LocalPath("nope.csv"); got != "" {
		t.Errorf("LocalPath = %q, want empty", got)
	}
}
