// Package firewall implements the Error Firewall & Override Rules: a
// static rule table that validates an outgoing tool-call list against the
// current scene, producing allow/block/auto_fix/replace decisions.
package firewall

import (
	"fmt"
	"log"
	"strings"
	"time"

	"routersupervisor/internal/model"
)

// Action is one rule's verdict for a single call.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionBlock   Action = "block"
	ActionAutoFix Action = "auto_fix"
	ActionReplace Action = "replace"
)

// Decision is a rule's verdict, carrying whatever the action needs: the
// calls to prepend for auto_fix, the substitute sequence for replace, or
// the explanatory message for block.
type Decision struct {
	Action      Action
	Prepend     []model.ToolCall
	Replacement []model.ToolCall
	Reason      string
}

// Rule is one static firewall rule. Evaluate returns matched=false when
// the rule does not apply to call; otherwise it returns its verdict.
type Rule struct {
	Name     string
	Evaluate func(call model.ToolCall, scene model.SceneContext, tools map[string]*model.ToolMetadata) (Decision, bool)
}

// RangeRule declares a clamp-only numeric bound for one tool's parameter,
// applied regardless of which allow/block/auto_fix/replace rule fires.
type RangeRule struct {
	Tool  string
	Param string
	Min   float64
	Max   float64
}

// BlockedError is returned when a rule's action is block; it is fatal for
// the call it names (spec.md §7).
type BlockedError struct {
	Rule   string
	Call   model.ToolCall
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("firewall: rule %q blocked tool %q: %s", e.Rule, e.Call.Tool, e.Reason)
}

// Firewall validates tool calls against a static rule table plus a
// clamp-only range table.
type Firewall struct {
	tools  map[string]*model.ToolMetadata
	rules  []Rule
	ranges map[rangeKey]RangeRule
}

type rangeKey struct{ tool, param string }

// New constructs a Firewall backed by the given tool metadata (used by the
// mode-fix and selection-fix rules to know each tool's preconditions) and
// numeric range table. The rule set is the builtin StandardRules; callers
// needing a different rule order or additional rules should construct
// Firewall{} directly.
func New(tools []*model.ToolMetadata, ranges []RangeRule) *Firewall {
	toolIndex := make(map[string]*model.ToolMetadata, len(tools))
	for _, t := range tools {
		toolIndex[t.Name] = t
	}
	rangeIndex := make(map[rangeKey]RangeRule, len(ranges))
	for _, r := range ranges {
		rangeIndex[rangeKey{r.Tool, r.Param}] = r
	}
	return &Firewall{tools: toolIndex, rules: StandardRules(), ranges: rangeIndex}
}

// Validate runs every call in calls through the rule table in order,
// returning the final corrected call list or a BlockedError on the first
// blocked call.
//
// A running copy of scene is updated after every emitted call (mode
// switches, select-all/deselect) so that a correction earlier in the list
// — including one the firewall itself just prepended — is visible to
// rule evaluation for a later call in the same list. Without this, running
// the firewall twice on its own output would re-prepend the same mode-fix
// a second time and violate idempotence (P12): the first pass's own
// corrective system_set_mode call, fed back in as input, must already
// satisfy the second pass's mode-fix rule for the call that follows it.
func (f *Firewall) Validate(calls []model.ToolCall, scene model.SceneContext, sessionID string) ([]model.CorrectedToolCall, error) {
	state := scene
	var out []model.CorrectedToolCall
	for _, call := range calls {
		corrected, err := f.validateOne(call, state, sessionID, "")
		if err != nil {
			return nil, err
		}
		for _, c := range corrected {
			simulateState(&state, model.ToolCall{Tool: c.Tool, Params: c.Params})
		}
		out = append(out, corrected...)
	}
	return out, nil
}

// simulateState updates the subset of scene state the firewall's own
// rules depend on (current mode, selection presence) after a call is
// emitted, using the same tool-naming convention internal/registry's
// expansion-time simulation uses.
func simulateState(state *model.SceneContext, call model.ToolCall) {
	tool := strings.ToLower(call.Tool)
	switch {
	case tool == "system_set_mode":
		if mode, ok := call.Params["mode"].(string); ok {
			state.Mode = model.Mode(mode)
		}
	case strings.Contains(tool, "deselect") || isDeselectAction(call.Params):
		state.Topology.HasSelection = false
	case strings.Contains(tool, "select_all"):
		state.Topology.HasSelection = true
	}
}

// isDeselectAction reports whether params carries an explicit
// "action":"deselect" (case-insensitive), the shape a combined
// select/deselect tool such as mesh_select_all uses to mean the opposite
// of its own name.
func isDeselectAction(params map[string]any) bool {
	action, ok := params["action"].(string)
	return ok && strings.EqualFold(action, "deselect")
}

// validateOne runs call through every rule except excludeRule (used to
// stop a replace rule's own output from immediately re-triggering itself,
// per the resolved Open Question 1: replace output IS re-validated against
// the remaining rules).
func (f *Firewall) validateOne(call model.ToolCall, scene model.SceneContext, sessionID, excludeRule string) ([]model.CorrectedToolCall, error) {
	clamped, wasClamped := f.clamp(call)

	for _, rule := range f.rules {
		if rule.Name == excludeRule {
			continue
		}
		decision, matched := rule.Evaluate(clamped, scene, f.tools)
		if !matched || decision.Action == ActionAllow {
			continue
		}

		switch decision.Action {
		case ActionBlock:
			return nil, &BlockedError{Rule: rule.Name, Call: clamped, Reason: decision.Reason}

		case ActionAutoFix:
			var result []model.CorrectedToolCall
			for _, p := range decision.Prepend {
				result = append(result, f.correct(p, sessionID, reasonFor(rule.Name), clamped.Tool))
			}
			mainReason := model.ReasonPassthrough
			if wasClamped {
				mainReason = model.ReasonClamp
			}
			result = append(result, f.correct(clamped, sessionID, mainReason, ""))
			return result, nil

		case ActionReplace:
			var result []model.CorrectedToolCall
			for _, r := range decision.Replacement {
				sub, err := f.validateOne(r, scene, sessionID, rule.Name)
				if err != nil {
					return nil, err
				}
				result = append(result, sub...)
			}
			return result, nil
		}
	}

	mainReason := model.ReasonPassthrough
	if wasClamped {
		mainReason = model.ReasonClamp
	}
	return []model.CorrectedToolCall{f.correct(clamped, sessionID, mainReason, "")}, nil
}

func (f *Firewall) correct(call model.ToolCall, sessionID string, reason model.CorrectionReason, originatingTool string) model.CorrectedToolCall {
	return model.CorrectedToolCall{
		Tool:            call.Tool,
		Params:          call.Params,
		Timestamp:       time.Now(),
		SessionID:       sessionID,
		OriginatingTool: originatingTool,
		Reason:          reason,
	}
}

func reasonFor(ruleName string) model.CorrectionReason {
	switch ruleName {
	case ruleNameModeFix:
		return model.ReasonModeFix
	case ruleNameSelectionFix:
		return model.ReasonSelectionFix
	default:
		return model.ReasonWorkflowStep
	}
}

// clamp applies the range table to call's numeric parameters, logging a
// note for every value actually adjusted. It never blocks or rejects: an
// out-of-range value is corrected in place, never dropped (spec.md §4.11).
func (f *Firewall) clamp(call model.ToolCall) (model.ToolCall, bool) {
	if len(f.ranges) == 0 || len(call.Params) == 0 {
		return call, false
	}

	changed := false
	params := make(map[string]any, len(call.Params))
	for k, v := range call.Params {
		params[k] = v
	}
	for name, value := range params {
		rule, ok := f.ranges[rangeKey{call.Tool, name}]
		if !ok {
			continue
		}
		num, ok := toFloat(value)
		if !ok {
			continue
		}
		clamped := num
		if clamped < rule.Min {
			clamped = rule.Min
		}
		if clamped > rule.Max {
			clamped = rule.Max
		}
		if clamped != num {
			log.Printf("firewall: clamped %s.%s from %v to %v (range [%v, %v])", call.Tool, name, num, clamped, rule.Min, rule.Max)
			params[name] = clamped
			changed = true
		}
	}
	return model.ToolCall{Tool: call.Tool, Params: params}, changed
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
