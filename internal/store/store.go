package store

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
)

// BlobStore is the persisted-file collaborator consulted by the cache resolver.
type BlobStore interface {
	// Manifest returns the store's manifest, or ErrNoManifest.
	Manifest(ctx context.Context) (*Manifest, error)
	// Get returns the blob stored under filename, or ErrNotFound.
	Get(ctx context.Context, filename string) ([]byte, error)
	// Put stores body under filename and records it in the manifest.
	Put(ctx context.Context, filename string, body []byte) error
}

// Backend selects a BlobStore implementation.
type Backend string

const (
	BackendDir    Backend = "dir"
	BackendSQLite Backend = "sqlite"
)

// Open returns the store for backend. location is a directory for
// BackendDir and a database path for BackendSQLite. SQLite stores must be
// closed by the caller.
func Open(backend Backend, location string) (BlobStore, error) {
	switch backend {
	case BackendDir, "":
		return NewDirStore(location), nil
	case BackendSQLite:
		return NewSQLiteStore(location)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// ValidateName rejects names that are empty, contain path separators, or
// name the manifest itself.
func ValidateName(filename string) error {
	switch {
	case filename == "",
		filename == ManifestFile,
		strings.ContainsAny(filename, `/\`),
		filename == "." || filename == "..",
		filepath.Base(filename) != filename:
		return fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	return nil
}
