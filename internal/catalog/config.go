// Package catalog loads tool metadata and workflow definitions from disk
// into the typed records in internal/model, accepting two equivalent
// surface syntaxes (YAML and JSON), inline content, and a chunked import
// protocol for payloads too large for a single request.
package catalog

// Config controls where the catalog loader looks for files and where it
// keeps its load-hash cache.
type Config struct {
	// Root is the directory workflow and tool metadata files are
	// discovered under, recursively.
	Root string
	// CachePath is the sqlite file backing the load-hash cache. Empty
	// keeps the cache in memory for the life of the process only, so every
	// file counts as changed on the first load after each restart.
	CachePath string
}

// DefaultConfig returns the catalog's zero-config defaults.
func DefaultConfig() Config {
	return Config{
		Root:      "./workflows",
		CachePath: "./data/catalog.db",
	}
}
