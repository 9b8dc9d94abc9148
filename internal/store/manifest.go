// Package store implements the persisted tier: a path-addressed blob store
// holding one JSON document per file plus a manifest describing them.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sort"
	"time"
)

// ManifestFile is the fixed name of the manifest blob.
const ManifestFile = "manifest.json"

var (
	// ErrNoManifest means the store has never been populated.
	ErrNoManifest = errors.New("manifest not found")
	// ErrNotFound means the requested blob does not exist.
	ErrNotFound = errors.New("blob not found")
	// ErrInvalidName rejects file names that would escape the store.
	ErrInvalidName = errors.New("invalid blob name")
)

// FileInfo describes one blob listed in the manifest.
type FileInfo struct {
	Size       int64
	ModifiedAt time.Time
	Checksum   string // hex sha256 of the blob
}

// Manifest describes the contents and generation time of a store.
// A zero GeneratedAt means the timestamp was absent or unparsable.
type Manifest struct {
	GeneratedAt time.Time
	TotalFiles  int
	Files       map[string]FileInfo
}

type manifestWire struct {
	GeneratedAt string              `json:"generated_at"`
	TotalFiles  int                 `json:"total_files"`
	Files       map[string]fileWire `json:"files"`
}

type fileWire struct {
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
	Checksum string `json:"checksum"`
}

// timeLayouts accepts both zoned ISO-8601 and the naive form produced by
// the scheduled export job.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

// ParseTimestamp parses an ISO-8601 timestamp. Naive timestamps are UTC.
// The zero time is returned when s cannot be parsed.
func ParseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// UnmarshalJSON decodes the wire shape. Bad timestamps do not fail the decode.
func (m *Manifest) UnmarshalJSON(data []byte) error {
	var w manifestWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.GeneratedAt = ParseTimestamp(w.GeneratedAt)
	m.TotalFiles = w.TotalFiles
	m.Files = make(map[string]FileInfo, len(w.Files))
	for name, f := range w.Files {
		m.Files[name] = FileInfo{
			Size:       f.Size,
			ModifiedAt: ParseTimestamp(f.Modified),
			Checksum:   f.Checksum,
		}
	}
	return nil
}

// MarshalJSON encodes the wire shape.
func (m Manifest) MarshalJSON() ([]byte, error) {
	w := manifestWire{
		GeneratedAt: formatTimestamp(m.GeneratedAt),
		TotalFiles:  m.TotalFiles,
		Files:       make(map[string]fileWire, len(m.Files)),
	}
	for name, f := range m.Files {
		w.Files[name] = fileWire{
			Size:     f.Size,
			Modified: formatTimestamp(f.ModifiedAt),
			Checksum: f.Checksum,
		}
	}
	return json.Marshal(w)
}

// Lookup returns the entry for filename.
func (m *Manifest) Lookup(filename string) (FileInfo, bool) {
	if m == nil {
		return FileInfo{}, false
	}
	f, ok := m.Files[filename]
	return f, ok
}

// Names returns the listed file names in sorted order.
func (m *Manifest) Names() []string {
	if m == nil {
		return nil
	}
	names := make([]string, 0, len(m.Files))
	for name := range m.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Checksum returns the hex sha256 of body, as recorded in manifests.
func Checksum(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
