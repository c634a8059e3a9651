package catalog

import (
	"database/sql"
	"log"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// hashCache persists (file_path, content_hash) pairs across restarts so a
// reload of an unchanged workflow file doesn't trigger downstream
// re-embedding. An empty path degrades to an in-memory-only cache: every
// file looks "changed" once per process, never across restarts.
type hashCache struct {
	db *sql.DB
}

const hashCacheSchema = `
CREATE TABLE IF NOT EXISTS file_hashes (
	path TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	loaded_at INTEGER NOT NULL
);
`

func newHashCache(path string) (*hashCache, error) {
	if path == "" {
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, err
		}
		if _, err := db.Exec(hashCacheSchema); err != nil {
			return nil, err
		}
		return &hashCache{db: db}, nil
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Printf("catalog: failed to create cache dir %s: %v", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(hashCacheSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &hashCache{db: db}, nil
}

// changed reports whether hash differs from the stored hash for path (or
// no record exists yet), and records hash as current either way.
func (c *hashCache) changed(path, hash string) bool {
	var stored string
	err := c.db.QueryRow(`SELECT content_hash FROM file_hashes WHERE path = ?`, path).Scan(&stored)
	isChanged := err != nil || stored != hash

	_, execErr := c.db.Exec(`
		INSERT INTO file_hashes (path, content_hash, loaded_at)
		VALUES (?, ?, strftime('%s','now'))
		ON CONFLICT(path) DO UPDATE SET content_hash=excluded.content_hash, loaded_at=excluded.loaded_at
	`, path, hash)
	if execErr != nil {
		log.Printf("catalog: failed to record hash for %s: %v", path, execErr)
	}

	return isChanged
}

func (c *hashCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}
