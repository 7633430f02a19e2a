// Package cache stores compiled scanner images in a local SQLite database,
// keyed by the checksum of the pattern set that produced them. Recompiling
// an unchanged pattern set becomes a single read.
package cache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"GoScan/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS scanners (
	key        TEXT PRIMARY KEY,
	signature  INTEGER NOT NULL,
	image      BLOB NOT NULL,
	created_at INTEGER NOT NULL
);
`

// Cache is a compiled-scanner cache. Safe for concurrent use; database/sql
// serializes access to the underlying connection pool.
type Cache struct {
	db *sql.DB
}

// Open opens (creating if needed) the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("cache open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache init schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores a serialized scanner image under key, replacing any previous
// entry.
func (c *Cache) Put(key storage.Checksum, signature uint64, image []byte) error {
	_, err := c.db.Exec(
		`INSERT OR REPLACE INTO scanners (key, signature, image, created_at) VALUES (?, ?, ?, ?)`,
		string(key), int64(signature), image, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("cache put %s: %w", key, err)
	}
	return nil
}

// Get returns the cached image for key, or ok=false on a miss.
func (c *Cache) Get(key storage.Checksum) (image []byte, signature uint64, ok bool, err error) {
	var sig int64
	row := c.db.QueryRow(`SELECT image, signature FROM scanners WHERE key = ?`, string(key))
	if err := row.Scan(&image, &sig); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, false, nil
		}
		return nil, 0, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return image, uint64(sig), true, nil
}

// Evict removes the entry for key, if present.
func (c *Cache) Evict(key storage.Checksum) error {
	if _, err := c.db.Exec(`DELETE FROM scanners WHERE key = ?`, string(key)); err != nil {
		return fmt.Errorf("cache evict %s: %w", key, err)
	}
	return nil
}

// Stats reports the entry count and total image bytes held by the cache.
func (c *Cache) Stats() (entries int64, bytes int64, err error) {
	row := c.db.QueryRow(`SELECT COUNT(*), COALESCE(SUM(LENGTH(image)), 0) FROM scanners`)
	if err := row.Scan(&entries, &bytes); err != nil {
		return 0, 0, fmt.Errorf("cache stats: %w", err)
	}
	return entries, bytes, nil
}
