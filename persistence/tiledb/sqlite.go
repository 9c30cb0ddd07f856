// Package tiledb persists tile blobs in a single SQLite database, one row per
// tile id. Suited to worlds with many small tiles where a file per tile gets
// unwieldy.
package tiledb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store is a SQLite-backed tile store.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and prepares the schema.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	// WAL suits the overwrite-heavy eviction workload; NORMAL is enough
	// durability for best-effort persistence.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tiles (
			id INTEGER PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Put overwrites the blob for a tile id.
func (s *Store) Put(id uint64, data string) error {
	_, err := s.db.Exec(
		`INSERT INTO tiles (id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data=excluded.data, updated_at=excluded.updated_at;`,
		int64(id), data, time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Get reads a tile blob back. ok is false for ids never written.
func (s *Store) Get(id uint64) (string, bool, error) {
	var data string
	err := s.db.QueryRow(`SELECT data FROM tiles WHERE id = ?;`, int64(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return data, true, nil
}

// Count reports how many tiles are stored.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tiles;`).Scan(&n)
	return n, err
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
