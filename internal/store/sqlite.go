package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"payloadforge/internal/logging"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps blobs in a single SQLite database. The manifest is
// derived from the blobs table plus a generated_at row in meta.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
	now    func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewSQLiteStore")
	defer timer.Stop()

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreWarn("failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreWarn("failed to set sqlite journal_mode=WAL: %v", err)
	}

	s := &SQLiteStore{db: db, dbPath: path, now: time.Now}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logging.Store("opened sqlite store at %s", path)
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS blobs (
		name TEXT PRIMARY KEY,
		body BLOB NOT NULL,
		size INTEGER NOT NULL,
		modified_at TEXT NOT NULL,
		checksum TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Manifest builds the manifest from the stored rows. An empty database
// without a generation timestamp has no manifest.
func (s *SQLiteStore) Manifest(ctx context.Context) (*Manifest, error) {
	var generated string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'generated_at'`).Scan(&generated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoManifest
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read generated_at: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT name, size, modified_at, checksum FROM blobs`)
	if err != nil {
		return nil, fmt.Errorf("failed to list blobs: %w", err)
	}
	defer rows.Close()

	m := &Manifest{GeneratedAt: ParseTimestamp(generated), Files: make(map[string]FileInfo)}
	for rows.Next() {
		var (
			name, modified, checksum string
			size                     int64
		)
		if err := rows.Scan(&name, &size, &modified, &checksum); err != nil {
			return nil, fmt.Errorf("failed to scan blob row: %w", err)
		}
		m.Files[name] = FileInfo{Size: size, ModifiedAt: ParseTimestamp(modified), Checksum: checksum}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	m.TotalFiles = len(m.Files)
	return m, nil
}

// Get returns one blob.
func (s *SQLiteStore) Get(ctx context.Context, filename string) ([]byte, error) {
	if err := ValidateName(filename); err != nil {
		return nil, err
	}
	var body []byte
	err := s.db.QueryRowContext(ctx, `SELECT body FROM blobs WHERE name = ?`, filename).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, filename)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return body, nil
}

// Put upserts a blob. The first write stamps generated_at.
func (s *SQLiteStore) Put(ctx context.Context, filename string, body []byte) error {
	if err := ValidateName(filename); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := formatTimestamp(s.now())
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO blobs (name, body, size, modified_at, checksum) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			body = excluded.body,
			size = excluded.size,
			modified_at = excluded.modified_at,
			checksum = excluded.checksum`,
		filename, body, len(body), now, Checksum(body))
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", filename, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO meta (key, value) VALUES ('generated_at', ?)`, now); err != nil {
		return fmt.Errorf("failed to stamp generated_at: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit %s: %w", filename, err)
	}
	logging.Store("stored %s (%d bytes) in %s", filename, len(body), s.dbPath)
	return nil
}

// SetGeneratedAt overrides the generation timestamp, as an import does.
func (s *SQLiteStore) SetGeneratedAt(ctx context.Context, t time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES ('generated_at', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, formatTimestamp(t))
	if err != nil {
		return fmt.Errorf("failed to set generated_at: %w", err)
	}
	return nil
}

// Import copies every blob listed in src's manifest, preserving its
// generation timestamp. It returns the number of blobs copied.
func (s *SQLiteStore) Import(ctx context.Context, src BlobStore) (int, error) {
	m, err := src.Manifest(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read source manifest: %w", err)
	}
	copied := 0
	for _, name := range m.Names() {
		body, err := src.Get(ctx, name)
		if err != nil {
			logging.StoreWarn("import skipped %s: %v", name, err)
			continue
		}
		if err := s.Put(ctx, name, body); err != nil {
			logging.StoreError("import stopped at %s after %d files: %v", name, copied, err)
			return copied, err
		}
		copied++
	}
	if err := s.SetGeneratedAt(ctx, m.GeneratedAt); err != nil {
		return copied, err
	}
	return copied, nil
}
