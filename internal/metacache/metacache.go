// Package metacache is the Metadata Cache (C5): a session-scoped memo of
// source-key -> (ModMetadata, raw bytes), backed by a tiny SQLite schema.
// The database lives entirely in memory (":memory:") since no
// cross-session persistence is needed, but the hit/miss discipline and
// the CREATE TABLE/INSERT OR REPLACE shape are the same a disk-backed
// install-tracking cache would use.
package metacache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mmerge/modmerge/internal/model"
)

// Cache memoizes parsed metadata and raw bytes by source key: the
// download URL for remote files, "local:<pack_id>:<path>" for local ones.
type Cache struct {
	mu sync.Mutex
	db *sql.DB
}

// Open creates a fresh, session-scoped cache backed by an in-memory
// SQLite connection. Each Cache gets its own private database (every
// ":memory:" connection is a separate database) so concurrent test cases
// or sessions never share state.
func Open() (*Cache, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("metacache: failed to open in-memory database: %w", err)
	}
	// :memory: databases are private per connection; pin the pool to a
	// single connection so every query lands on the same schema/rows.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE entries (
		source_key TEXT PRIMARY KEY,
		metadata   TEXT NOT NULL,
		raw_bytes  BLOB
	)`)
	if err != nil {
		return nil, fmt.Errorf("metacache: failed to create schema: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close releases the backing in-memory database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// LocalKey builds the source key for a local file: "local:<pack_id>:<path>".
func LocalKey(packID model.PackID, path string) string {
	return fmt.Sprintf("local:%d:%s", packID, path)
}

// Get returns the cached (metadata, raw bytes) for key, or ok=false on a
// miss. A hit never triggers a re-fetch or re-parse by the caller.
func (c *Cache) Get(key string) (md *model.ModMetadata, raw []byte, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var metadataJSON string
	var rawBytes []byte
	err := c.db.QueryRow("SELECT metadata, raw_bytes FROM entries WHERE source_key = ?", key).
		Scan(&metadataJSON, &rawBytes)
	if err != nil {
		return nil, nil, false
	}

	var decoded model.ModMetadata
	if err := json.Unmarshal([]byte(metadataJSON), &decoded); err != nil {
		return nil, nil, false
	}

	return &decoded, rawBytes, true
}

// Put inserts or replaces the cache entry for key. raw may be nil when the
// caller doesn't need to retain the original bytes (e.g. a local entry
// whose archive is still open and cheap to re-read).
func (c *Cache) Put(key string, md *model.ModMetadata, raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	encoded, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("metacache: failed to encode metadata for %s: %w", key, err)
	}

	_, err = c.db.Exec("INSERT OR REPLACE INTO entries(source_key, metadata, raw_bytes) VALUES (?, ?, ?)",
		key, string(encoded), raw)
	return err
}
