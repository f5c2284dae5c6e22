package indexcache

import (
	"path/filepath"
	"testing"
)

func TestStoreThenLookup(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.Store("ml", 1000, 42, 5, 3, 7); err != nil {
		t.Fatalf("Store: %v", err)
	}
	first, count, ok, err := c.Lookup("ml", 1000, 42, 5)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !ok || first != 3 || count != 7 {
		t.Fatalf("Lookup = %d, %d, %v, want 3, 7, true", first, count, ok)
	}
}

func TestLookupMissOnStaleGeneration(t *testing.T) {
	dir := t.TempDir()
	c, err := Open(filepath.Join(dir, "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	if err := c.Store("ml", 1000, 42, 5, 3, 7); err != nil {
		t.Fatalf("Store: %v", err)
	}
	_, _, ok, err := c.Lookup("ml", 1001, 42, 5)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ok {
		t.Fatalf("expected a miss for a different index size")
	}
}
