package vectorstore

import (
	"fmt"
	"os"
)

// Config controls how the vector store is constructed.
type Config struct {
	// PersistPath is the directory chromem-go persists collections to.
	// Empty means in-memory only, which is also the store's fallback mode
	// when persistence cannot be initialized.
	PersistPath string
}

// DefaultConfig returns an in-memory-only configuration.
func DefaultConfig() Config {
	return Config{PersistPath: ""}
}

// ConfigFromEnv overlays RS_VECTORSTORE_* environment variables onto
// DefaultConfig.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v := os.Getenv("RS_VECTORSTORE_PATH"); v != "" {
		cfg.PersistPath = v
	}
	return cfg
}

// Validate checks the configuration is usable.
func (c Config) Validate() error {
	if c.PersistPath == "" {
		return nil
	}
	if c.PersistPath == "." || c.PersistPath == "/" {
		return fmt.Errorf("vectorstore: refusing to persist at %q", c.PersistPath)
	}
	return nil
}
