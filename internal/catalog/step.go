package catalog

import (
	"reflect"
	"strings"

	"routersupervisor/internal/model"
)

// declaredStepKeys enumerates the surface keys WorkflowStep declares,
// discovered via reflection on its yaml tags rather than hard-coded, so a
// field added to the struct is automatically recognized here too.
func declaredStepKeys() map[string]bool {
	t := reflect.TypeOf(model.WorkflowStep{})
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("yaml")
		if tag == "" || tag == "-" {
			continue
		}
		name := strings.Split(tag, ",")[0]
		keys[name] = true
	}
	return keys
}

var stepKeys = declaredStepKeys()

// populateStep builds a WorkflowStep from one raw step record. Every
// declared field is populated from its matching key; any key not in the
// declared set whose value is a boolean is retained in Filters instead of
// being silently dropped.
func populateStep(path string, raw map[string]any) (*model.WorkflowStep, error) {
	step := &model.WorkflowStep{Filters: map[string]bool{}}

	tool, ok := raw["tool"].(string)
	if !ok || tool == "" {
		return nil, newValidationError(path, "tool", "required field missing or not a string")
	}
	step.Tool = tool

	params, ok := raw["params"].(map[string]any)
	if !ok {
		return nil, newValidationError(path, "params", "required field missing or not a mapping")
	}
	step.Params = params

	if v, ok := raw["description"].(string); ok {
		step.Description = v
	}
	if v, ok := raw["condition"].(string); ok {
		step.Condition = v
	}
	if v, ok := raw["optional"].(bool); ok {
		step.Optional = v
	}
	if v, ok := raw["disable_adaptation"].(bool); ok {
		step.DisableAdaptation = v
	}
	if v, ok := raw["tags"].([]any); ok {
		for _, t := range v {
			if s, ok := t.(string); ok {
				step.Tags = append(step.Tags, s)
			}
		}
	}

	for key, val := range raw {
		if stepKeys[key] {
			continue
		}
		if b, ok := val.(bool); ok {
			step.Filters[key] = b
		}
	}

	return step, nil
}
