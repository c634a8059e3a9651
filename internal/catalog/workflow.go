package catalog

import "routersupervisor/internal/model"

// parseWorkflow builds a WorkflowDefinition from a raw, syntax-normalized
// record (see decodeRaw), validating required fields.
func parseWorkflow(path string, raw map[string]any) (*model.WorkflowDefinition, error) {
	name, ok := raw["name"].(string)
	if !ok || name == "" {
		return nil, newValidationError(path, "name", "required field missing or not a string")
	}

	wf := &model.WorkflowDefinition{
		Name:       name,
		Parameters: map[string]*model.ParameterSchema{},
		Modifiers:  map[string]*model.ModifierOverride{},
	}

	if v, ok := raw["description"].(string); ok {
		wf.Description = v
	}
	if v, ok := raw["trigger_keywords"].([]any); ok {
		for _, k := range v {
			if s, ok := k.(string); ok {
				wf.TriggerKeywords = append(wf.TriggerKeywords, s)
			}
		}
	}
	if v, ok := raw["shape_patterns"].([]any); ok {
		for _, k := range v {
			if s, ok := k.(string); ok {
				wf.ShapePatterns = append(wf.ShapePatterns, s)
			}
		}
	}

	if params, ok := raw["parameters"].(map[string]any); ok {
		for pname, praw := range params {
			pm, ok := praw.(map[string]any)
			if !ok {
				return nil, newValidationError(path, "parameters."+pname, "not a mapping")
			}
			wf.Parameters[pname] = parseParameterSchema(pname, pm)
		}
	}

	if mods, ok := raw["modifiers"].(map[string]any); ok {
		for phrase, mraw := range mods {
			mm, ok := mraw.(map[string]any)
			if !ok {
				return nil, newValidationError(path, "modifiers."+phrase, "not a mapping")
			}
			wf.Modifiers[phrase] = parseModifierOverride(mm)
		}
	}

	steps, ok := raw["steps"].([]any)
	if !ok || len(steps) == 0 {
		return nil, newValidationError(path, "steps", "required field missing or empty")
	}
	for _, sraw := range steps {
		sm, ok := sraw.(map[string]any)
		if !ok {
			return nil, newValidationError(path, "steps", "step is not a mapping")
		}
		step, err := populateStep(path, sm)
		if err != nil {
			return nil, err
		}
		wf.Steps = append(wf.Steps, step)
	}

	return wf, nil
}

// parseToolMetadata builds a ToolMetadata from a raw, syntax-normalized
// record.
func parseToolMetadata(path string, raw map[string]any) (*model.ToolMetadata, error) {
	name, ok := raw["name"].(string)
	if !ok || name == "" {
		return nil, newValidationError(path, "name", "required field missing or not a string")
	}

	tm := &model.ToolMetadata{Name: name}
	if v, ok := raw["category"].(string); ok {
		tm.Category = v
	}
	if v, ok := raw["description"].(string); ok {
		tm.Description = v
	}
	if v, ok := raw["mode_required"].(string); ok {
		tm.ModeRequired = model.Mode(v)
	}
	if v, ok := raw["requires_selection"].(bool); ok {
		tm.RequiresSelection = v
	}
	if v, ok := raw["sample_prompts"].([]any); ok {
		for _, s := range v {
			if str, ok := s.(string); ok {
				tm.SamplePrompts = append(tm.SamplePrompts, str)
			}
		}
	}
	return tm, nil
}
