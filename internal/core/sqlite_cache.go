package core

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// CacheDBName is the file name of the task database inside the cache directory.
const CacheDBName = "taskgraph.db"

const cacheSchema = `
CREATE TABLE IF NOT EXISTS task_cache (
	hash      TEXT PRIMARY KEY,
	task_name TEXT NOT NULL,
	targets   TEXT NOT NULL
);`

// SQLiteCache implements Cache on a SQLite database file.
//
// Structure:
//
//	{CacheDir}/
//	  taskgraph.db   (table task_cache: hash, task_name, targets JSON)
type SQLiteCache struct {
	db   *sql.DB
	path string
}

// OpenSQLiteCache opens (creating if needed) the task database in cacheDir.
func OpenSQLiteCache(cacheDir string) (*SQLiteCache, error) {
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	path := filepath.Join(cacheDir, CacheDBName)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	// A single connection serializes writers; SQLite file locking would
	// otherwise surface SQLITE_BUSY under the parallel executor.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(cacheSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing cache schema: %w", err)
	}
	return &SQLiteCache{db: db, path: path}, nil
}

// Path returns the database file path.
func (c *SQLiteCache) Path() string { return c.path }

// Close releases the database handle.
func (c *SQLiteCache) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Has checks if an entry exists for the given hash.
func (c *SQLiteCache) Has(hash TaskHash) (bool, error) {
	var n int
	err := c.db.QueryRow(`SELECT COUNT(1) FROM task_cache WHERE hash = ?`, string(hash)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking cache entry: %w", err)
	}
	return n > 0, nil
}

// Get retrieves an entry by hash.
func (c *SQLiteCache) Get(hash TaskHash) (*CacheEntry, error) {
	var name, targets string
	err := c.db.QueryRow(
		`SELECT task_name, targets FROM task_cache WHERE hash = ?`, string(hash),
	).Scan(&name, &targets)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading cache entry: %w", err)
	}

	entry := &CacheEntry{Hash: hash, TaskName: name}
	if err := json.Unmarshal([]byte(targets), &entry.Targets); err != nil {
		return nil, fmt.Errorf("parsing cache entry targets: %w", err)
	}
	return entry, nil
}

// Put stores an entry.
func (c *SQLiteCache) Put(entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("cache entry is nil")
	}
	targets := entry.Targets
	if targets == nil {
		targets = []TargetDigest{}
	}
	data, err := json.Marshal(targets)
	if err != nil {
		return fmt.Errorf("marshaling cache entry targets: %w", err)
	}
	_, err = c.db.Exec(
		`INSERT INTO task_cache (hash, task_name, targets) VALUES (?, ?, ?)
		 ON CONFLICT(hash) DO UPDATE SET task_name = excluded.task_name, targets = excluded.targets`,
		string(entry.Hash), entry.TaskName, string(data),
	)
	if err != nil {
		return fmt.Errorf("writing cache entry: %w", err)
	}
	return nil
}
