package storage

import (
	"os"
	"testing"
)

func TestFileStore_RoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	if err := store.Set("session_token", "abc123"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := store.Get("session_token")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !ok {
		t.Fatal("Expected key to exist")
	}
	if value != "abc123" {
		t.Errorf("Expected %q, got %q", "abc123", value)
	}
}

func TestFileStore_GetMissing(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	_, ok, err := store.Get("nope")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if ok {
		t.Error("Missing key should not exist")
	}
}

func TestFileStore_Delete(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	if err := store.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get("k"); ok {
		t.Error("Deleted key should not exist")
	}

	// Deleting again is not an error.
	if err := store.Delete("k"); err != nil {
		t.Errorf("Deleting a missing key should be a no-op, got %v", err)
	}
}

func TestFileStore_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	if err := store.Set("session_token", "secret"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	info, err := os.Stat(store.Path("session_token"))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Expected file mode 0600, got %o", perm)
	}
}

func TestFileStore_OverwriteVisibleImmediately(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}

	if err := store.Set("k", "one"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set("k", "two"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, _, _ := store.Get("k")
	if value != "two" {
		t.Errorf("Expected overwritten value, got %q", value)
	}
}

func TestMemStore_RoundTrip(t *testing.T) {
	store := NewMemStore()

	if err := store.Set("k", "v"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, _ := store.Get("k")
	if !ok || value != "v" {
		t.Errorf("Expected stored value, got %q (ok=%v)", value, ok)
	}

	if err := store.Delete("k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, ok, _ := store.Get("k"); ok {
		t.Error("Deleted key should not exist")
	}
}
