// Package resolver implements the Parameter Resolver: for every
// client-required parameter of the winning workflow, it tries the
// Modifier Extractor's value, then a learned mapping from a previous
// session, before finally asking the client to supply one.
package resolver

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"routersupervisor/internal/embeddings"
	"routersupervisor/internal/model"
	"routersupervisor/internal/vectorstore"
)

// Source identifies which tier resolved a parameter.
type Source string

const (
	SourceModifier Source = "modifier"
	SourceLearned  Source = "learned"
)

const (
	// relevanceWordThreshold is the per-word semantic bar a prompt token
	// must clear against a hint for the hint to count as "present".
	relevanceWordThreshold = 0.65
	// minRelevanceScore is the floor on the overall relevance score
	// (1.0 for a literal hit, else the best word/hint similarity).
	minRelevanceScore = 0.40
	// memoryThreshold is the learned-mapping similarity bar (§4.8).
	memoryThreshold = 0.85
	// fullPromptCeiling is the length under which the whole prompt is
	// used verbatim as context, skipping sentence/window extraction.
	fullPromptCeiling = 500
)

// Config controls resolver thresholds; exposed for tests, not expected to
// vary at runtime since the values are spec-mandated constants.
type Config struct {
	RelevanceWordThreshold float64
	MinRelevanceScore      float64
	MemoryThreshold        float64
}

// DefaultConfig returns the spec-mandated thresholds.
func DefaultConfig() Config {
	return Config{
		RelevanceWordThreshold: relevanceWordThreshold,
		MinRelevanceScore:      minRelevanceScore,
		MemoryThreshold:        memoryThreshold,
	}
}

// UnresolvedParameter is returned to the client when no tier resolves a
// parameter; it carries everything the client needs to prompt for a value.
type UnresolvedParameter struct {
	Name        string         `json:"name"`
	Type        model.ParamType `json:"type"`
	Range       *[2]float64    `json:"range,omitempty"`
	EnumOptions []string       `json:"enum_options,omitempty"`
	Default     any            `json:"default,omitempty"`
	Hints       []string       `json:"hints,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Result is the resolver's verdict for every client-required parameter of
// one workflow.
type Result struct {
	Resolved   map[string]any
	Unresolved []UnresolvedParameter
	Sources    map[string]Source
}

func newResult() Result {
	return Result{Resolved: map[string]any{}, Sources: map[string]Source{}}
}

// Resolver ties the learned-mapping vector store and the embedding service
// together to drive the three-tier resolution.
type Resolver struct {
	store    *vectorstore.Store
	embedder embeddings.Embedder
	cfg      Config
}

// New constructs a Resolver.
func New(store *vectorstore.Store, embedder embeddings.Embedder, cfg Config) *Resolver {
	return &Resolver{store: store, embedder: embedder, cfg: cfg}
}

// Resolve walks every client-required parameter of wf (those with neither
// a default nor a computed expression — see model.ParameterSchema.
// ClientRequired), checking provided (the already-merged modifier ∪
// explicit values, explicit winning per spec §4.12 step 3) first, then a
// learned mapping, before marking the parameter unresolved.
func (r *Resolver) Resolve(ctx context.Context, wf *model.WorkflowDefinition, prompt string, provided map[string]any) (Result, error) {
	result := newResult()

	for name, schema := range wf.Parameters {
		if !schema.ClientRequired() {
			continue
		}

		if raw, ok := provided[name]; ok {
			value, err := r.validate(schema, raw)
			if err != nil {
				result.Unresolved = append(result.Unresolved, unresolvedFor(name, schema, err.Error()))
				continue
			}
			result.Resolved[name] = value
			result.Sources[name] = SourceModifier
			continue
		}

		value, ok, err := r.lookupLearned(ctx, wf.Name, name, schema, prompt)
		if err != nil {
			return Result{}, fmt.Errorf("resolver: learned lookup for %s.%s: %w", wf.Name, name, err)
		}
		if ok {
			result.Resolved[name] = value
			result.Sources[name] = SourceLearned
			continue
		}

		result.Unresolved = append(result.Unresolved, unresolvedFor(name, schema, ""))
	}

	return result, nil
}

// Learn persists an explicitly client-resolved value as a learned mapping
// for future reuse, keyed by the extracted context around the parameter's
// first semantic hint. Computed parameters are never learned (§4.8).
func (r *Resolver) Learn(ctx context.Context, wf *model.WorkflowDefinition, paramName string, prompt string, value any) error {
	schema := wf.Parameters[paramName]
	if schema == nil || schema.Computed != "" {
		return nil
	}

	hint := ""
	if len(schema.SemanticHints) > 0 {
		hint = schema.SemanticHints[0]
	}
	learnedContext := r.extractContext(prompt, hint)

	vec, err := r.embedder.Embed(ctx, learnedContext)
	if err != nil {
		return fmt.Errorf("resolver: embed learned context: %w", err)
	}

	rec := model.VectorRecord{
		ID:        uuid.NewString(),
		Namespace: model.NamespaceParameters,
		Vector:    vec,
		Payload: map[string]any{
			"workflow_name":  wf.Name,
			"parameter_name": paramName,
			"value":          value,
			"context":        learnedContext,
		},
	}
	if err := r.store.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("resolver: store learned mapping: %w", err)
	}
	return nil
}

func (r *Resolver) lookupLearned(ctx context.Context, workflowName, paramName string, schema *model.ParameterSchema, prompt string) (any, bool, error) {
	match, relevant, err := r.locateRelevantHint(ctx, prompt, schema.SemanticHints)
	if err != nil {
		return nil, false, err
	}
	if !relevant {
		return nil, false, nil
	}

	learnedContext := r.extractContext(prompt, match.promptText)
	vec, err := r.embedder.Embed(ctx, learnedContext)
	if err != nil {
		return nil, false, err
	}

	filter := func(payload map[string]any) bool {
		wf, _ := payload["workflow_name"].(string)
		pn, _ := payload["parameter_name"].(string)
		return wf == workflowName && pn == paramName
	}
	results, err := r.store.Search(ctx, model.NamespaceParameters, vec, 1, float32(r.cfg.MemoryThreshold), filter)
	if err != nil {
		return nil, false, err
	}
	if len(results) == 0 {
		return nil, false, nil
	}
	value, ok := results[0].Payload["value"]
	return value, ok, nil
}

// validate applies enum normalization and range clamping to a value
// supplied through the modifier tier (§4.8).
func (r *Resolver) validate(schema *model.ParameterSchema, value any) (any, error) {
	if schema.Type == model.ParamEnum {
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected a string for enum parameter, got %T", value)
		}
		norm := normalizeEnumValue(s)
		for _, candidate := range schema.EnumValues {
			if normalizeEnumValue(candidate) == norm {
				return candidate, nil
			}
		}
		return nil, fmt.Errorf("invalid value %q; valid options: %s", s, strings.Join(schema.EnumValues, ", "))
	}

	if schema.HasRange() {
		if f, ok := toFloat(value); ok {
			clamped := clampRange(f, *schema.Min, *schema.Max)
			if clamped != f {
				log.Printf("resolver: clamped %v to %v (range [%v, %v])", f, clamped, *schema.Min, *schema.Max)
			}
			return clamped, nil
		}
	}

	return value, nil
}

func normalizeEnumValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.ToLower(s)
}

func clampRange(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	default:
		return 0, false
	}
}

func unresolvedFor(name string, schema *model.ParameterSchema, errMsg string) UnresolvedParameter {
	u := UnresolvedParameter{
		Name:        name,
		Type:        schema.Type,
		EnumOptions: schema.EnumValues,
		Default:     schema.Default,
		Hints:       schema.SemanticHints,
		Error:       errMsg,
	}
	if schema.HasRange() {
		u.Range = &[2]float64{*schema.Min, *schema.Max}
	}
	return u
}
