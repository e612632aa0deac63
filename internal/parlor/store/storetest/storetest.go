// Package storetest provides a throwaway SQLite store for package tests.
package storetest

import (
	"path/filepath"
	"testing"

	"github.com/bdobrica/parlor/internal/parlor/store"
)

// New creates a migrated store in t.TempDir() that is closed when the test
// ends.
func New(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "parlor-test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return s
}
