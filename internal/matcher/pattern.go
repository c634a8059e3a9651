package matcher

import (
	"context"

	"routersupervisor/internal/model"
)

// shapePatterns maps a declared pattern name to a predicate over the
// current scene's proportions. thresholdElongated separates "phone_like"
// (narrow, roughly planar) objects from cubes.
const thresholdElongated = 0.7

var shapePatterns = map[string]func(model.ProportionInfo) bool{
	"tower_like": func(p model.ProportionInfo) bool { return p.IsTall },
	"flat_like":  func(p model.ProportionInfo) bool { return p.IsFlat },
	"plate_like": func(p model.ProportionInfo) bool { return p.IsFlat },
	"phone_like": func(p model.ProportionInfo) bool {
		return !p.IsTall && !p.IsFlat && p.AspectXY > 0 && p.AspectXY < thresholdElongated
	},
	"cube_like": func(p model.ProportionInfo) bool {
		return !p.IsTall && !p.IsFlat && p.AspectXY >= thresholdElongated
	},
}

// PatternMatcher scores a workflow by the fraction of its declared
// shape_patterns satisfied by the current scene's proportions.
type PatternMatcher struct {
	source WorkflowSource
}

// NewPatternMatcher constructs a PatternMatcher reading workflows from source.
func NewPatternMatcher(source WorkflowSource) *PatternMatcher {
	return &PatternMatcher{source: source}
}

func (m *PatternMatcher) Name() string    { return "pattern" }
func (m *PatternMatcher) Weight() float64 { return 0.20 }

func (m *PatternMatcher) Match(_ context.Context, _ string, scene model.SceneContext) ([]Candidate, error) {
	var candidates []Candidate
	for _, wf := range m.source.Workflows() {
		if len(wf.ShapePatterns) == 0 {
			continue
		}
		matched := 0
		for _, name := range wf.ShapePatterns {
			pred, ok := shapePatterns[name]
			if ok && pred(scene.Proportions) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / float64(len(wf.ShapePatterns))
		candidates = append(candidates, Candidate{WorkflowName: wf.Name, Score: score})
	}
	return candidates, nil
}
