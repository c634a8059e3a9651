package matcher

import (
	"context"
	"strings"

	"routersupervisor/internal/model"
)

// WorkflowSource supplies the set of currently loaded workflows to a
// matcher. internal/catalog's Snapshot exposes WorkflowList with this
// shape (it cannot be named Workflows itself: that identifier is already
// its map field of the same name).
type WorkflowSource interface {
	Workflows() []*model.WorkflowDefinition
}

// AsWorkflowSource adapts any type with a WorkflowList method (such as
// *catalog.Snapshot) to WorkflowSource.
func AsWorkflowSource(src interface {
	WorkflowList() []*model.WorkflowDefinition
}) WorkflowSource {
	return workflowListAdapter{src}
}

type workflowListAdapter struct {
	src interface {
		WorkflowList() []*model.WorkflowDefinition
	}
}

func (a workflowListAdapter) Workflows() []*model.WorkflowDefinition {
	return a.src.WorkflowList()
}

// KeywordMatcher scores a workflow by the fraction of its declared
// trigger_keywords found as case-insensitive substrings of the prompt.
type KeywordMatcher struct {
	source WorkflowSource
}

// NewKeywordMatcher constructs a KeywordMatcher reading workflows from source.
func NewKeywordMatcher(source WorkflowSource) *KeywordMatcher {
	return &KeywordMatcher{source: source}
}

func (m *KeywordMatcher) Name() string    { return "keyword" }
func (m *KeywordMatcher) Weight() float64 { return 0.40 }

func (m *KeywordMatcher) Match(_ context.Context, prompt string, _ model.SceneContext) ([]Candidate, error) {
	lowerPrompt := strings.ToLower(prompt)

	var candidates []Candidate
	for _, wf := range m.source.Workflows() {
		if len(wf.TriggerKeywords) == 0 {
			continue
		}
		matched := 0
		for _, kw := range wf.TriggerKeywords {
			if strings.Contains(lowerPrompt, strings.ToLower(kw)) {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		score := float64(matched) / float64(len(wf.TriggerKeywords))
		candidates = append(candidates, Candidate{WorkflowName: wf.Name, Score: score})
	}
	return candidates, nil
}
