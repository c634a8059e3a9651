// Package vectorstore wraps chromem-go as the embedded vector database
// backing tool, workflow, and learned-parameter similarity search.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"

	chromem "github.com/philippgille/chromem-go"

	"routersupervisor/internal/model"
)

// Store is a namespaced similarity search index. Each model.Namespace maps
// onto its own chromem collection, mirroring the teacher's one-collection-
// per-entity-kind layout.
type Store struct {
	db *chromem.DB
}

// New constructs a Store. A configured PersistPath makes it durable across
// restarts; an empty one keeps everything in memory, which doubles as the
// in-memory fallback this package needs — chromem-go's own in-memory mode
// already satisfies that requirement without a second code path.
func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.PersistPath == "" {
		log.Printf("vectorstore: initialized in-memory only")
		return &Store{db: chromem.NewDB()}, nil
	}

	db, err := chromem.NewPersistentDB(cfg.PersistPath, false)
	if err != nil {
		log.Printf("vectorstore: failed to open persistent store at %s, falling back to in-memory: %v", cfg.PersistPath, err)
		return &Store{db: chromem.NewDB()}, nil
	}
	log.Printf("vectorstore: initialized with persistence at %s", cfg.PersistPath)
	return &Store{db: db}, nil
}

func (s *Store) collectionName(ns model.Namespace) string { return string(ns) }

func (s *Store) getOrCreateCollection(ns model.Namespace) (*chromem.Collection, error) {
	name := s.collectionName(ns)
	if col := s.db.GetCollection(name, nil); col != nil {
		return col, nil
	}
	col, err := s.db.CreateCollection(name, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: create collection %s: %w", name, err)
	}
	return col, nil
}

// Upsert stores or replaces a record. Records are addressed by (namespace,
// id); re-upserting the same id in the same namespace replaces the prior
// vector and payload.
func (s *Store) Upsert(ctx context.Context, rec model.VectorRecord) error {
	col, err := s.getOrCreateCollection(rec.Namespace)
	if err != nil {
		return err
	}

	// chromem-go has no native upsert; delete-then-add gives the same
	// effect and is cheap since collections are in-process.
	_ = col.Delete(ctx, nil, nil, rec.ID)

	meta, err := encodePayload(rec.Payload)
	if err != nil {
		return fmt.Errorf("vectorstore: encode payload for %s/%s: %w", rec.Namespace, rec.ID, err)
	}

	content := ""
	if v, ok := rec.Payload["content"].(string); ok {
		content = v
	}

	if err := col.AddDocument(ctx, chromem.Document{
		ID:        rec.ID,
		Content:   content,
		Metadata:  meta,
		Embedding: rec.Vector,
	}); err != nil {
		return fmt.Errorf("vectorstore: upsert %s/%s: %w", rec.Namespace, rec.ID, err)
	}
	return nil
}

// SearchResult is one similarity match.
type SearchResult struct {
	ID         string
	Similarity float32
	Payload    map[string]any
}

// FilterFunc is an arbitrary predicate over a match's payload, applied
// after the similarity ranking — a superset of chromem's own exact-match
// metadata filters, needed for things like "usage_count > 0".
type FilterFunc func(payload map[string]any) bool

// Search performs a cosine-similarity search within a namespace, returning
// up to limit results at or above minSimilarity that also satisfy filter
// (if non-nil). It over-fetches (limit*2) before filtering and truncating,
// the same pattern the teacher's SearchSimilarWithThreshold uses, so that a
// threshold or filter that rejects some of the nearest neighbors doesn't
// starve the result set.
func (s *Store) Search(ctx context.Context, ns model.Namespace, queryVector []float32, limit int, minSimilarity float32, filter FilterFunc) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	name := s.collectionName(ns)
	col := s.db.GetCollection(name, nil)
	if col == nil || col.Count() == 0 {
		return nil, nil
	}

	fetch := limit * 2
	if fetch < limit {
		fetch = limit // overflow guard for very large limits
	}

	results, err := col.QueryEmbedding(ctx, queryVector, fetch, nil, nil)
	if err != nil {
		// chromem-go rejects nResults greater than the collection size;
		// retry once against the whole collection.
		if all, allErr := col.QueryEmbedding(ctx, queryVector, col.Count(), nil, nil); allErr == nil {
			results = all
		} else {
			return nil, fmt.Errorf("vectorstore: search %s: %w", name, err)
		}
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Similarity > results[j].Similarity })

	out := make([]SearchResult, 0, limit)
	for _, r := range results {
		if r.Similarity < minSimilarity {
			continue
		}
		payload, err := decodePayload(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: decode payload for %s: %w", r.ID, err)
		}
		if filter != nil && !filter(payload) {
			continue
		}
		out = append(out, SearchResult{ID: r.ID, Similarity: r.Similarity, Payload: payload})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Delete removes a record from a namespace.
func (s *Store) Delete(ctx context.Context, ns model.Namespace, id string) error {
	name := s.collectionName(ns)
	col := s.db.GetCollection(name, nil)
	if col == nil {
		return nil
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("vectorstore: delete %s/%s: %w", name, id, err)
	}
	return nil
}

// Clear removes an entire namespace.
func (s *Store) Clear(ns model.Namespace) {
	s.db.DeleteCollection(s.collectionName(ns))
}

// Stats reports the record count per namespace currently present.
func (s *Store) Stats() map[model.Namespace]int {
	stats := make(map[model.Namespace]int)
	for _, ns := range []model.Namespace{model.NamespaceTools, model.NamespaceWorkflows, model.NamespaceParameters} {
		if col := s.db.GetCollection(s.collectionName(ns), nil); col != nil {
			stats[ns] = col.Count()
		}
	}
	return stats
}

// encodePayload JSON-encodes every value (including strings, which come out
// quoted) so decodePayload can round-trip types unambiguously through
// chromem's map[string]string metadata.
func encodePayload(payload map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(payload))
	for k, v := range payload {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = string(b)
	}
	return out, nil
}

func decodePayload(meta map[string]string) (map[string]any, error) {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err != nil {
			return nil, fmt.Errorf("decode field %q: %w", k, err)
		}
		out[k] = decoded
	}
	return out, nil
}
