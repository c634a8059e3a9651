// Package embeddings provides the deterministic text-embedding service used
// by the semantic matcher, modifier extractor, parameter resolver, and
// workflow adapter to place prompts, phrases, descriptions, and learned
// mappings in a shared vector space.
//
// The corpus's embedder called out to Voyage AI over HTTP. The router treats
// embedding as a pure function of its input text — no network calls, no API
// keys, no external service to degrade or rate-limit — so this package ships
// a local deterministic embedder instead (see local.go) behind the same
// Embedder interface the corpus used.
package embeddings

import (
	"context"
	"os"
	"strconv"
	"time"
)

// Embedder generates vector embeddings from text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts in one call.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding dimension.
	Dimension() int

	// Model returns the model identifier.
	Model() string

	// Provider returns the provider name.
	Provider() string
}

// EmbeddingMetadata describes how and when an embedding was produced, stored
// alongside vectors in the vector store for provenance and cache
// invalidation.
type EmbeddingMetadata struct {
	Model     string    `json:"model"`
	Provider  string    `json:"provider"`
	Dimension int       `json:"dimension"`
	CreatedAt time.Time `json:"created_at"`
	Source    string    `json:"source"` // "tool_description", "workflow_trigger", "learned_mapping"
}

// Config holds embedding configuration.
type Config struct {
	Model string `json:"model"`

	CacheEmbeddings bool          `json:"cache_embeddings"`
	CacheMax        int           `json:"cache_max"`
	CacheTTL        time.Duration `json:"cache_ttl"`

	BatchSize int `json:"batch_size"`
}

// DefaultConfig returns the default configuration for the local embedder.
func DefaultConfig() *Config {
	return &Config{
		Model:           "router-local-v1",
		CacheEmbeddings: true,
		CacheMax:        10000,
		CacheTTL:        24 * time.Hour,
		BatchSize:       100,
	}
}

// ConfigFromEnv overlays RS_EMBEDDINGS_* environment variables onto
// DefaultConfig.
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if model := os.Getenv("RS_EMBEDDINGS_MODEL"); model != "" {
		cfg.Model = model
	}

	if v := os.Getenv("RS_EMBEDDINGS_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CacheEmbeddings = b
		}
	}

	if v := os.Getenv("RS_EMBEDDINGS_CACHE_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheMax = n
		}
	}

	if ttl := os.Getenv("RS_EMBEDDINGS_CACHE_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			cfg.CacheTTL = d
		}
	}

	if batchSize := os.Getenv("RS_EMBEDDINGS_BATCH_SIZE"); batchSize != "" {
		if n, err := strconv.Atoi(batchSize); err == nil {
			cfg.BatchSize = n
		}
	}

	return cfg
}
