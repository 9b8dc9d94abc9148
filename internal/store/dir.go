package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"payloadforge/internal/logging"
)

// DirStore keeps each blob as <dir>/<filename> next to <dir>/manifest.json.
// The directory is normally populated by the scheduled export job; Put is
// used for best-effort write-back of live results.
type DirStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// NewDirStore returns a store rooted at dir. The directory need not exist.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir, now: time.Now}
}

// Dir returns the root directory.
func (s *DirStore) Dir() string {
	return s.dir
}

// Manifest reads manifest.json.
func (s *DirStore) Manifest(ctx context.Context) (*Manifest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readManifest()
}

func (s *DirStore) readManifest() (*Manifest, error) {
	path := filepath.Join(s.dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m, nil
}

// Get reads one blob.
func (s *DirStore) Get(ctx context.Context, filename string) ([]byte, error) {
	if err := ValidateName(filename); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
		}
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return data, nil
}

// Put writes the blob and updates its manifest entry. A missing manifest is
// created with the current time as its generation timestamp; an existing
// one keeps its timestamp, which belongs to the export job.
func (s *DirStore) Put(ctx context.Context, filename string, body []byte) error {
	if err := ValidateName(filename); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, filename), body); err != nil {
		return err
	}

	m, err := s.readManifest()
	switch {
	case errors.Is(err, ErrNoManifest):
		m = &Manifest{GeneratedAt: s.now().UTC()}
	case err != nil:
		// A corrupt manifest is replaced rather than blocking write-back.
		logging.StoreWarn("replacing unreadable manifest in %s: %v", s.dir, err)
		m = &Manifest{GeneratedAt: s.now().UTC()}
	}
	if m.Files == nil {
		m.Files = make(map[string]FileInfo)
	}
	m.Files[filename] = FileInfo{
		Size:       int64(len(body)),
		ModifiedAt: s.now().UTC(),
		Checksum:   Checksum(body),
	}
	m.TotalFiles = len(m.Files)

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, ManifestFile), data); err != nil {
		logging.StoreError("%s written but manifest not updated: %v", filename, err)
		return err
	}
	logging.Store("stored %s (%d bytes) in %s", filename, len(body), s.dir)
	return nil
}

// WriteManifest replaces manifest.json. Used by import tooling and tests.
func (s *DirStore) WriteManifest(m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	return writeFileAtomic(filepath.Join(s.dir, ManifestFile), data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
