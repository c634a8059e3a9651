// Package adapter implements the Workflow Adapter: given a workflow and the
// Ensemble Matcher's confidence level for it, decides which declared steps
// actually run.
package adapter

import (
	"context"
	"fmt"
	"strings"

	"routersupervisor/internal/embeddings"
	"routersupervisor/internal/model"
)

// defaultSemanticThreshold is the MEDIUM tier's fallback similarity bar for
// a step's description against the prompt, configurable per Config.
const defaultSemanticThreshold = 0.6

// Config controls the adapter's MEDIUM-tier semantic fallback threshold.
type Config struct {
	SemanticThreshold float64
}

// DefaultConfig returns the spec-mandated threshold.
func DefaultConfig() Config {
	return Config{SemanticThreshold: defaultSemanticThreshold}
}

// Adapter filters a workflow's step list down to the subset a given
// confidence level should execute.
type Adapter struct {
	embedder embeddings.Embedder
	cfg      Config
}

// New constructs an Adapter.
func New(embedder embeddings.Embedder, cfg Config) *Adapter {
	return &Adapter{embedder: embedder, cfg: cfg}
}

// Adapt returns the ordered subset of wf.Steps that level should execute
// for prompt, preserving declaration order.
//
// HIGH executes every step. MEDIUM executes every core step (IsCore) plus
// any optional step whose tags, dynamic filter attributes, or semantic
// description match prompt. LOW and NONE execute core steps only. A step
// with DisableAdaptation is always core regardless of its Optional flag
// (model.WorkflowStep.IsCore), so its runtime condition — not adaptation —
// decides whether it fires.
func (a *Adapter) Adapt(ctx context.Context, wf *model.WorkflowDefinition, level model.ConfidenceLevel, prompt string) ([]*model.WorkflowStep, error) {
	if level == model.ConfidenceHigh {
		out := make([]*model.WorkflowStep, len(wf.Steps))
		copy(out, wf.Steps)
		return out, nil
	}

	var out []*model.WorkflowStep
	lowerPrompt := strings.ToLower(prompt)
	for _, step := range wf.Steps {
		if step.IsCore() {
			out = append(out, step)
			continue
		}
		if level != model.ConfidenceMedium {
			continue
		}
		matched, err := a.matchesOptional(ctx, step, prompt, lowerPrompt)
		if err != nil {
			return nil, fmt.Errorf("adapter: matching step %q: %w", step.Tool, err)
		}
		if matched {
			out = append(out, step)
		}
	}
	return out, nil
}

// matchesOptional implements §4.9's MEDIUM three-way match: tag substring,
// then dynamic filter attribute, then semantic description similarity.
func (a *Adapter) matchesOptional(ctx context.Context, step *model.WorkflowStep, prompt, lowerPrompt string) (bool, error) {
	for _, tag := range step.Tags {
		if tag == "" {
			continue
		}
		if strings.Contains(lowerPrompt, strings.ToLower(tag)) {
			return true, nil
		}
	}

	for name, value := range step.Filters {
		phrase := strings.ToLower(strings.ReplaceAll(stripFilterPrefix(name), "_", " "))
		present := phrase != "" && strings.Contains(lowerPrompt, phrase)
		if value && present {
			return true, nil
		}
		if !value && !present {
			return true, nil
		}
	}

	if step.Description == "" {
		return false, nil
	}
	promptVec, err := a.embedder.Embed(ctx, prompt)
	if err != nil {
		return false, err
	}
	descVec, err := a.embedder.Embed(ctx, step.Description)
	if err != nil {
		return false, err
	}
	return embeddings.CosineSimilarity(promptVec, descVec) >= a.cfg.SemanticThreshold, nil
}

func stripFilterPrefix(name string) string {
	for _, prefix := range []string{"add_", "include_"} {
		if strings.HasPrefix(name, prefix) {
			return strings.TrimPrefix(name, prefix)
		}
	}
	return name
}
