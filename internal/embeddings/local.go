package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
)

// localDimension is the width of vectors produced by LocalEmbedder. It is
// large enough to give hashed n-gram features room to spread out without
// colliding too often on short trigger phrases.
const localDimension = 256

// LocalEmbedder is a deterministic, offline text embedder. It hashes
// character n-grams of the (lowercased, whitespace-normalized) input into a
// fixed-width vector and L2-normalizes the result, so the same text always
// produces the same vector and semantically similar phrases (sharing
// n-grams) land closer together under cosine similarity than unrelated
// ones.
//
// There is no network call and nothing to configure per-request: this is
// the "embedding as a pure function" stance from the catalog and matcher
// packages, which only need a stable similarity ordering, not a trained
// model.
type LocalEmbedder struct {
	model string
}

// NewLocalEmbedder constructs a LocalEmbedder. model is a free-form label
// stored alongside vectors for provenance; it does not change behavior.
func NewLocalEmbedder(model string) *LocalEmbedder {
	if model == "" {
		model = "router-local-v1"
	}
	return &LocalEmbedder{model: model}
}

func (e *LocalEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	return embedText(text), nil
}

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := e.Embed(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("embeddings: batch item %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (e *LocalEmbedder) Dimension() int { return localDimension }
func (e *LocalEmbedder) Model() string  { return e.model }
func (e *LocalEmbedder) Provider() string { return "local" }

// embedText hashes overlapping character trigrams (padded with word
// boundaries) into localDimension buckets and accumulates a signed count
// per bucket, then L2-normalizes. This is the classic hashed-feature-vector
// construction: cheap, deterministic, no training step, degrades gracefully
// on short or unseen text.
func embedText(text string) []float32 {
	norm := normalizeForEmbedding(text)
	vec := make([]float64, localDimension)

	grams := trigrams(norm)
	if len(grams) == 0 {
		grams = []string{norm}
	}

	for _, g := range grams {
		h := sha256.Sum256([]byte(g))
		idx := binary.BigEndian.Uint32(h[0:4]) % uint32(localDimension)
		sign := 1.0
		if h[4]&1 == 1 {
			sign = -1.0
		}
		vec[idx] += sign
	}

	return normalizeToUnit(vec)
}

func normalizeForEmbedding(text string) string {
	text = strings.ToLower(text)
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}

func trigrams(s string) []string {
	padded := " " + s + " "
	runes := []rune(padded)
	if len(runes) < 3 {
		return nil
	}
	grams := make([]string, 0, len(runes)-2)
	for i := 0; i+3 <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+3]))
	}
	return grams
}

func normalizeToUnit(vec []float64) []float32 {
	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, len(vec))
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}
