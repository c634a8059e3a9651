// Package modifier implements the Modifier Extractor: for the ensemble
// matcher's winning workflow, it turns free-text cues in the prompt into
// the workflow's declared parameter overrides.
package modifier

import (
	"context"
	"sort"
	"strings"

	"routersupervisor/internal/embeddings"
	"routersupervisor/internal/model"
)

// perWordThreshold is the minimum semantic similarity between a phrase
// word and a prompt n-gram for that word to count as matched.
const perWordThreshold = 0.65

// Extractor scores a workflow's declared modifier phrases against a prompt
// and applies the single best-matching phrase's parameter overrides.
// Satisfies internal/matcher's ModifierExtractor interface.
type Extractor struct {
	embedder embeddings.Embedder
}

// NewExtractor constructs an Extractor backed by embedder for per-word
// semantic matching (cross-lingual, since it never compares raw text).
func NewExtractor(embedder embeddings.Embedder) *Extractor {
	return &Extractor{embedder: embedder}
}

// candidate is one accepted phrase's score, kept with its declaration
// index for the deterministic tie-break.
type candidate struct {
	phrase      string
	override    *model.ModifierOverride
	avgSimilarity float64
	order       int
}

// Extract finds the single best-matching declared modifier phrase for
// prompt and returns its parameter overrides, or an empty map if no phrase
// is accepted. The only error it returns is one from the embedder: a phrase
// that fails its matching rules is simply not a candidate, not a failure.
func (e *Extractor) Extract(prompt string, wf *model.WorkflowDefinition) (map[string]any, error) {
	if len(wf.Modifiers) == 0 {
		return map[string]any{}, nil
	}

	ctx := context.Background()
	grams := promptNGrams(prompt)
	gramVecs := make([][]float32, len(grams))
	for i, g := range grams {
		vec, err := e.embedder.Embed(ctx, g)
		if err != nil {
			return nil, err
		}
		gramVecs[i] = vec
	}

	lowerPrompt := strings.ToLower(prompt)
	order := phraseOrder(wf)

	var accepted []candidate
	for i, phrase := range order {
		override := wf.Modifiers[phrase]
		if override == nil {
			continue
		}
		if hasNegativeSignal(lowerPrompt, override.NegativeSignals) {
			continue
		}
		avg, ok, err := e.scorePhrase(ctx, phrase, grams, gramVecs)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		accepted = append(accepted, candidate{phrase: phrase, override: override, avgSimilarity: avg, order: i})
	}

	if len(accepted) == 0 {
		return map[string]any{}, nil
	}

	sort.SliceStable(accepted, func(i, j int) bool {
		if accepted[i].avgSimilarity != accepted[j].avgSimilarity {
			return accepted[i].avgSimilarity > accepted[j].avgSimilarity
		}
		return accepted[i].order < accepted[j].order
	})

	winner := accepted[0]
	out := make(map[string]any, len(winner.override.Params))
	for k, v := range winner.override.Params {
		out[k] = v
	}
	return out, nil
}

// scorePhrase applies the per-phrase word-matching rule: required matches
// = min(wordCount, 2); each word's best similarity against any prompt
// n-gram must clear perWordThreshold to count.
func (e *Extractor) scorePhrase(ctx context.Context, phrase string, grams []string, gramVecs [][]float32) (avg float64, accepted bool, err error) {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return 0, false, nil
	}
	required := len(words)
	if required > 2 {
		required = 2
	}

	var matched []float64
	for _, w := range words {
		wordVec, embedErr := e.embedder.Embed(ctx, w)
		if embedErr != nil {
			return 0, false, embedErr
		}
		best := 0.0
		for i := range grams {
			sim := embeddings.CosineSimilarity(wordVec, gramVecs[i])
			if sim > best {
				best = sim
			}
		}
		if best >= perWordThreshold {
			matched = append(matched, best)
		}
	}

	if len(matched) < required {
		return 0, false, nil
	}

	var sum float64
	for _, s := range matched {
		sum += s
	}
	return sum / float64(len(matched)), true, nil
}

func hasNegativeSignal(lowerPrompt string, signals []string) bool {
	for _, sig := range signals {
		if sig == "" {
			continue
		}
		if strings.Contains(lowerPrompt, strings.ToLower(sig)) {
			return true
		}
	}
	return false
}

// phraseOrder returns wf's modifier phrases in declaration order when the
// loader recorded it (ModifierOrder), falling back to sorted key order for
// workflows built directly in Go (e.g. tests) where no file order exists.
func phraseOrder(wf *model.WorkflowDefinition) []string {
	if len(wf.ModifierOrder) > 0 {
		return wf.ModifierOrder
	}
	keys := make([]string, 0, len(wf.Modifiers))
	for k := range wf.Modifiers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

