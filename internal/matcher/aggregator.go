package matcher

import (
	"context"
	"math"
	"sort"

	"routersupervisor/internal/model"
)

// floatEpsilon is the slack clamped away from floating-point noise just
// above 1.0 (and, symmetrically, just below 0.0) per spec.md P13.
const floatEpsilon = 1e-9

// ModifierExtractor supplies the winning workflow's extracted parameter
// overrides; the aggregator calls it once it has a winner (spec.md §4.6:
// "The aggregator then calls the Modifier Extractor for the winning
// workflow"). internal/modifier.Extractor satisfies this.
type ModifierExtractor interface {
	Extract(prompt string, wf *model.WorkflowDefinition) (map[string]any, error)
}

// AggregatorConfig carries the confidence-level thresholds (spec.md §6).
type AggregatorConfig struct {
	ConfidenceHigh   float64
	ConfidenceMedium float64
}

// Aggregator combines every registered Matcher's scores into one
// EnsembleResult for the winning workflow.
type Aggregator struct {
	matchers  []Matcher
	source    WorkflowSource
	modifiers ModifierExtractor
	cfg       AggregatorConfig
}

// NewAggregator constructs an Aggregator over matchers, which may be any
// number and combination satisfying Matcher (not assumed to be exactly
// keyword/semantic/pattern). source resolves the winning workflow's name
// back to its full definition for modifier extraction.
func NewAggregator(matchers []Matcher, source WorkflowSource, modifiers ModifierExtractor, cfg AggregatorConfig) *Aggregator {
	return &Aggregator{matchers: matchers, source: source, modifiers: modifiers, cfg: cfg}
}

// Match runs every matcher, combines per-workflow contributions, selects a
// winner, and extracts that winner's modifier overrides.
func (a *Aggregator) Match(ctx context.Context, prompt string, scene model.SceneContext) (model.EnsembleResult, []Candidate, error) {
	contributions := map[string]map[string]float64{} // workflow -> matcher -> score

	for _, m := range a.matchers {
		candidates, err := m.Match(ctx, prompt, scene)
		if err != nil {
			continue // a failing matcher simply contributes nothing
		}
		for _, c := range candidates {
			if c.Score <= 0 {
				continue
			}
			if contributions[c.WorkflowName] == nil {
				contributions[c.WorkflowName] = map[string]float64{}
			}
			contributions[c.WorkflowName][m.Name()] = c.Score
		}
	}

	type scored struct {
		workflow   string
		raw        float64
		normalized float64
		byMatcher  map[string]float64
	}

	var all []scored
	for workflow, byMatcher := range contributions {
		var raw, maxPossible float64
		for _, m := range a.matchers {
			score, ok := byMatcher[m.Name()]
			if !ok {
				continue
			}
			raw += m.Weight() * score
			maxPossible += m.Weight()
		}
		normalized := 0.0
		if maxPossible > 0 {
			normalized = clamp01(raw / maxPossible)
		}
		all = append(all, scored{workflow: workflow, raw: raw, normalized: normalized, byMatcher: byMatcher})
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].normalized != all[j].normalized {
			return all[i].normalized > all[j].normalized
		}
		if all[i].raw != all[j].raw {
			return all[i].raw > all[j].raw
		}
		return all[i].workflow < all[j].workflow
	})

	fallback := make([]Candidate, 0, len(all))
	for _, s := range all {
		fallback = append(fallback, Candidate{WorkflowName: s.workflow, Score: s.normalized})
	}

	if len(all) == 0 {
		return model.EnsembleResult{}, fallback, nil
	}

	winner := all[0]
	level := confidenceLevel(winner.normalized, a.cfg)
	if hasSimpleToken(prompt) {
		level = model.ConfidenceLow
	}

	result := model.EnsembleResult{
		WorkflowName:           winner.workflow,
		NormalizedScore:        winner.normalized,
		ConfidenceLevel:        level,
		ContributionsByMatcher: winner.byMatcher,
	}

	if a.modifiers != nil {
		wf := findWorkflow(a.source, winner.workflow)
		if wf != nil {
			mods, err := a.modifiers.Extract(prompt, wf)
			if err == nil {
				result.Modifiers = mods
			}
		}
	}

	return result, fallback[1:], nil
}

func confidenceLevel(normalized float64, cfg AggregatorConfig) model.ConfidenceLevel {
	switch {
	case normalized >= cfg.ConfidenceHigh:
		return model.ConfidenceHigh
	case normalized >= cfg.ConfidenceMedium:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}

// clamp01 implements the P13 float-precision clamp: values arriving
// marginally outside [0,1] from floating-point noise (within floatEpsilon)
// are clamped rather than left to violate the invariant or panic.
func clamp01(v float64) float64 {
	if v > 1.0 && v <= 1.0+floatEpsilon {
		return 1.0
	}
	if v < 0.0 && v >= -floatEpsilon {
		return 0.0
	}
	return math.Min(1.0, math.Max(0.0, v))
}

func findWorkflow(source WorkflowSource, name string) *model.WorkflowDefinition {
	if source == nil {
		return nil
	}
	for _, wf := range source.Workflows() {
		if wf.Name == name {
			return wf
		}
	}
	return nil
}
