package matcher

import (
	"context"
	"log"
	"sync"

	"routersupervisor/internal/embeddings"
	"routersupervisor/internal/model"
)

// SemanticMatcher scores a workflow by cosine similarity between the
// prompt and the workflow's description. It caches each workflow's
// description embedding until Invalidate drops it; the next Refresh then
// embeds that description again.
type SemanticMatcher struct {
	source   WorkflowSource
	embedder embeddings.Embedder

	mu         sync.RWMutex
	embeddings map[string][]float32 // workflow name -> description embedding
}

// NewSemanticMatcher constructs a SemanticMatcher. Refresh must be called
// once before the first Match (normally wired as the catalog loader's
// OnReload callback).
func NewSemanticMatcher(source WorkflowSource, embedder embeddings.Embedder) *SemanticMatcher {
	return &SemanticMatcher{
		source:     source,
		embedder:   embedder,
		embeddings: map[string][]float32{},
	}
}

func (m *SemanticMatcher) Name() string    { return "semantic" }
func (m *SemanticMatcher) Weight() float64 { return 0.40 }

// Refresh embeds the description of every currently-loaded workflow that has
// no cached embedding. Safe to call repeatedly; cached entries are kept as
// they are until Invalidate drops them.
func (m *SemanticMatcher) Refresh(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, wf := range m.source.Workflows() {
		if _, ok := m.embeddings[wf.Name]; ok {
			continue
		}
		vec, err := m.embedder.Embed(ctx, wf.Description)
		if err != nil {
			log.Printf("matcher: failed to embed description for workflow %q: %v", wf.Name, err)
			continue
		}
		m.embeddings[wf.Name] = vec
	}
}

// Invalidate drops a workflow's cached embedding so the next Refresh
// recomputes it (used when a workflow's content changes on reload).
func (m *SemanticMatcher) Invalidate(workflowName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.embeddings, workflowName)
}

func (m *SemanticMatcher) Match(ctx context.Context, prompt string, _ model.SceneContext) ([]Candidate, error) {
	promptVec, err := m.embedder.Embed(ctx, prompt)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]Candidate, 0, len(m.embeddings))
	for _, wf := range m.source.Workflows() {
		vec, ok := m.embeddings[wf.Name]
		if !ok {
			continue
		}
		score := embeddings.CosineSimilarity(promptVec, vec)
		if score < 0 {
			score = 0
		}
		candidates = append(candidates, Candidate{WorkflowName: wf.Name, Score: score})
	}
	return candidates, nil
}
