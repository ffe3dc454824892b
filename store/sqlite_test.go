package store

import (
	"path/filepath"
	"testing"
)

func TestSQLiteBackendBasicOps(t *testing.T) {
	backend, err := NewSQLiteBackend(":memory:")
	if err != nil {
		t.Fatalf("failed to create SQLite backend: %v", err)
	}
	defer backend.Close()

	if err := backend.Put("sv_a", []byte("alpha")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := backend.Get("sv_a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "alpha" {
		t.Errorf("got %q, want alpha", got)
	}

	// Overwrite
	if err := backend.Put("sv_a", []byte("beta")); err != nil {
		t.Fatal(err)
	}
	got, _ = backend.Get("sv_a")
	if string(got) != "beta" {
		t.Errorf("overwrite: got %q, want beta", got)
	}

	if err := backend.Delete("sv_a"); err != nil {
		t.Fatal(err)
	}
	if _, err := backend.Get("sv_a"); err != ErrNotFound {
		t.Errorf("Get after delete: got %v, want ErrNotFound", err)
	}
}

func TestSQLiteBackendKeysPrefix(t *testing.T) {
	backend, err := NewSQLiteBackend(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	backend.Put("sv_one", []byte("1"))
	backend.Put("sv_two", []byte("2"))
	backend.Put("other", []byte("3"))

	keys, err := backend.Keys("sv_")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 {
		t.Errorf("Keys(sv_) returned %v, want 2 keys", keys)
	}

	all, err := backend.Keys("")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Keys(\"\") returned %v, want 3 keys", all)
	}
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "entries.db")

	backend, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := backend.Put("sv_k", []byte("persisted")); err != nil {
		t.Fatal(err)
	}
	backend.Close()

	reopened, err := NewSQLiteBackend(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	got, err := reopened.Get("sv_k")
	if err != nil {
		t.Fatalf("Get after reopen failed: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("got %q, want persisted", got)
	}
}

func TestLikePatternEscapesWildcards(t *testing.T) {
	backend, err := NewSQLiteBackend(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	backend.Put("sv_literal", []byte("1"))
	backend.Put("svXliteral", []byte("2"))

	// The underscore in the prefix must match literally, not as a wildcard.
	keys, err := backend.Keys("sv_")
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 1 || keys[0] != "sv_literal" {
		t.Errorf("Keys(sv_) = %v, want only sv_literal", keys)
	}
}
