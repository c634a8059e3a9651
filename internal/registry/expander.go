package registry

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"routersupervisor/internal/adapter"
	"routersupervisor/internal/expr"
	"routersupervisor/internal/model"
)

var (
	calculatePattern = regexp.MustCompile(`^\$CALCULATE\((.+)\)$`)
	varPattern       = regexp.MustCompile(`^\$([A-Za-z_][A-Za-z0-9_]*)$`)
)

// Expander turns a workflow, its final parameter values, and the current
// scene into the ordered tool-call list described by spec.md §4.10.
type Expander struct {
	adapter *adapter.Adapter
}

// NewExpander constructs an Expander backed by adapter for step filtering.
func NewExpander(a *adapter.Adapter) *Expander {
	return &Expander{adapter: a}
}

// Expand resolves computed parameters, adapts the step list to level,
// evaluates each step's condition against a running condition context
// (scene fields plus all_params), resolves $CALCULATE/$var references
// (recursively through lists and maps), and emits a CorrectedToolCall per
// surviving step while simulating its side effect on the condition context
// so later conditions observe it — regardless of whether the step itself
// was actually emitted (spec.md §4.10 step 5).
func (e *Expander) Expand(ctx context.Context, wf *model.WorkflowDefinition, resolved map[string]any, scene model.SceneContext, level model.ConfidenceLevel, prompt, sessionID string) ([]model.CorrectedToolCall, error) {
	allParams, err := e.resolveParameters(wf, resolved)
	if err != nil {
		return nil, err
	}

	steps, err := e.adapter.Adapt(ctx, wf, level, prompt)
	if err != nil {
		return nil, fmt.Errorf("registry: adapting steps: %w", err)
	}

	condCtx := buildConditionContext(scene, allParams)
	engine := expr.NewEngine()
	engine.SetContext(condCtx)

	var out []model.CorrectedToolCall
	for _, step := range steps {
		emit := true
		if step.Condition != "" {
			if b, evalErr := engine.EvaluateAsBool(step.Condition); evalErr == nil {
				emit = b
			}
			// Fail-open (P3): an evaluation error leaves emit == true.
		}

		params := resolveStepParams(engine, step.Params)
		if emit {
			out = append(out, model.CorrectedToolCall{
				Tool:      step.Tool,
				Params:    params,
				Timestamp: time.Now(),
				SessionID: sessionID,
				Reason:    model.ReasonWorkflowStep,
			})
		}

		simulateSideEffect(condCtx, step, params)
		engine.SetContext(condCtx)
	}
	return out, nil
}

// resolveParameters builds all_params = defaults ∪ resolved (resolved
// already carries modifier ∪ explicit ∪ learned, merged upstream by
// internal/resolver), then resolves computed parameters with
// base < computed < explicit precedence via internal/expr.
func (e *Expander) resolveParameters(wf *model.WorkflowDefinition, resolved map[string]any) (map[string]any, error) {
	base := make(map[string]any, len(wf.Parameters))
	for name, schema := range wf.Parameters {
		if schema.Default != nil {
			base[name] = schema.Default
		}
	}
	for name, value := range resolved {
		base[name] = value
	}

	schemas := make([]expr.ComputedSchema, 0, len(wf.Parameters))
	for name, schema := range wf.Parameters {
		schemas = append(schemas, expr.ComputedSchema{
			Name:      name,
			Computed:  schema.Computed,
			DependsOn: schema.DependsOn,
		})
	}

	allParams, err := expr.ResolveComputedParameters(schemas, base)
	if err != nil {
		return nil, fmt.Errorf("registry: resolving computed parameters: %w", err)
	}
	return allParams, nil
}

func buildConditionContext(scene model.SceneContext, allParams map[string]any) map[string]any {
	ctx := map[string]any{
		"current_mode":   string(scene.Mode),
		"has_selection":  scene.Topology.HasSelection,
		"object_count":   len(scene.Objects),
		"selected_verts": scene.Topology.SelectedVerts,
		"selected_edges": scene.Topology.SelectedEdges,
		"selected_faces": scene.Topology.SelectedFaces,
	}
	for k, v := range allParams {
		ctx[k] = v
	}
	return ctx
}

// resolveStepParams resolves $CALCULATE(...) and $var references in a
// step's declared params against engine's current context, recursing
// through lists and nested maps; any other value passes through unchanged.
func resolveStepParams(engine *expr.Engine, params map[string]any) map[string]any {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = resolveValue(engine, v)
	}
	return out
}

func resolveValue(engine *expr.Engine, v any) any {
	switch t := v.(type) {
	case string:
		if m := calculatePattern.FindStringSubmatch(t); m != nil {
			result, err := engine.Evaluate(m[1])
			if err != nil {
				// Fail-soft (P4): the literal string passes through unchanged.
				return t
			}
			return result
		}
		if m := varPattern.FindStringSubmatch(t); m != nil {
			if val, err := engine.GetVariable(m[1]); err == nil {
				return val
			}
			return t
		}
		return t
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = resolveValue(engine, e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = resolveValue(engine, e)
		}
		return out
	default:
		return v
	}
}

// simulateSideEffect applies step's minimal, at-least-covered effect on
// ctx: mode changes via the canonical system_set_mode tool (P11),
// select-all/deselect toggling has_selection, primitive creation
// incrementing object_count, and object deletion decrementing it.
func simulateSideEffect(ctx map[string]any, step *model.WorkflowStep, resolvedParams map[string]any) {
	tool := strings.ToLower(step.Tool)

	switch {
	case tool == "system_set_mode":
		if mode, ok := resolvedParams["mode"].(string); ok {
			ctx["current_mode"] = mode
		}
	case strings.Contains(tool, "deselect") || isDeselectAction(resolvedParams):
		ctx["has_selection"] = false
	case strings.Contains(tool, "select_all"):
		ctx["has_selection"] = true
	case strings.Contains(tool, "create_"):
		ctx["object_count"] = asInt(ctx["object_count"]) + 1
	case strings.Contains(tool, "delete_") || strings.Contains(tool, "remove_object"):
		n := asInt(ctx["object_count"]) - 1
		if n < 0 {
			n = 0
		}
		ctx["object_count"] = n
	}
}

func asInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

// isDeselectAction reports whether resolvedParams carries an explicit
// "action":"deselect" (case-insensitive), the shape a combined
// select/deselect tool such as mesh_select_all uses to mean the opposite
// of its own name.
func isDeselectAction(resolvedParams map[string]any) bool {
	action, ok := resolvedParams["action"].(string)
	return ok && strings.EqualFold(action, "deselect")
}
