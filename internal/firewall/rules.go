package firewall

import (
	"strings"

	"routersupervisor/internal/model"
)

const (
	ruleNameModeFix      = "mode-fix"
	ruleNameSelectionFix = "selection-fix"
	ruleNameNoObject     = "delete-no-object"
	rulePhoneProportion  = "phone-proportion-extrude"
)

// StandardRules is the builtin rule table, evaluated in order: the first
// rule whose Evaluate reports a non-allow match wins. Block and replace
// are checked before the generic auto_fix precondition rules, since a
// blocked call never needs a precondition repair and a replaced call's
// own substitute sequence (not the original call) is what actually needs
// mode/selection fixing — that happens recursively in validateOne.
func StandardRules() []Rule {
	return []Rule{
		deleteNoObjectRule(),
		phoneProportionExtrudeRule(),
		modeFixRule(),
		selectionFixRule(),
	}
}

// modeFixRule prepends a mode switch when a tool declares a required mode
// the scene is not currently in.
func modeFixRule() Rule {
	return Rule{
		Name: ruleNameModeFix,
		Evaluate: func(call model.ToolCall, scene model.SceneContext, tools map[string]*model.ToolMetadata) (Decision, bool) {
			meta, ok := tools[call.Tool]
			if !ok || meta.ModeRequired == "" || meta.ModeRequired == model.ModeAny {
				return Decision{}, false
			}
			if scene.Mode == meta.ModeRequired {
				return Decision{}, false
			}
			return Decision{
				Action:  ActionAutoFix,
				Prepend: []model.ToolCall{{Tool: "system_set_mode", Params: map[string]any{"mode": string(meta.ModeRequired)}}},
				Reason:  "tool requires mode " + string(meta.ModeRequired),
			}, true
		},
	}
}

// selectionFixRule prepends a select-all when a tool requires a selection
// the scene does not currently have. This is also how scenario 6's
// extrude-on-empty-selection case resolves by default (auto_fix over
// block — see DESIGN.md).
func selectionFixRule() Rule {
	return Rule{
		Name: ruleNameSelectionFix,
		Evaluate: func(call model.ToolCall, scene model.SceneContext, tools map[string]*model.ToolMetadata) (Decision, bool) {
			meta, ok := tools[call.Tool]
			if !ok || !meta.RequiresSelection || scene.Topology.HasSelection {
				return Decision{}, false
			}
			return Decision{
				Action:  ActionAutoFix,
				Prepend: []model.ToolCall{{Tool: "mesh_select_all", Params: map[string]any{}}},
				Reason:  "tool requires a selection",
			}, true
		},
	}
}

// deleteNoObjectRule blocks a delete-family call when the scene has no
// objects at all.
func deleteNoObjectRule() Rule {
	return Rule{
		Name: ruleNameNoObject,
		Evaluate: func(call model.ToolCall, scene model.SceneContext, tools map[string]*model.ToolMetadata) (Decision, bool) {
			if !isDeleteTool(call.Tool) || len(scene.Objects) > 0 {
				return Decision{}, false
			}
			return Decision{Action: ActionBlock, Reason: "no object exists to delete"}, true
		},
	}
}

func isDeleteTool(tool string) bool {
	return strings.Contains(tool, "delete") || strings.Contains(tool, "remove_object")
}

// phoneProportionExtrudeRule rewrites an extrude on a tall, flat (phone-
// proportioned) object into an inset followed by the original extrude, the
// example pattern-driven replacement spec.md §4.11 itself names.
func phoneProportionExtrudeRule() Rule {
	return Rule{
		Name: rulePhoneProportion,
		Evaluate: func(call model.ToolCall, scene model.SceneContext, tools map[string]*model.ToolMetadata) (Decision, bool) {
			if call.Tool != "mesh_extrude_region" {
				return Decision{}, false
			}
			if !scene.Proportions.IsTall || !scene.Proportions.IsFlat {
				return Decision{}, false
			}
			inset := model.ToolCall{Tool: "mesh_inset_faces", Params: map[string]any{"thickness": 0.01}}
			return Decision{
				Action:      ActionReplace,
				Replacement: []model.ToolCall{inset, call},
				Reason:      "phone-proportioned object: inset before extrude",
			}, true
		},
	}
}
