package catalog

import "routersupervisor/internal/model"

// parseParameterSchema builds a ParameterSchema from one raw parameter
// record found under a workflow's "parameters" mapping.
func parseParameterSchema(name string, raw map[string]any) *model.ParameterSchema {
	p := &model.ParameterSchema{Name: name}

	if v, ok := raw["type"].(string); ok {
		p.Type = model.ParamType(v)
	}
	if rng, ok := raw["range"].([]any); ok && len(rng) == 2 {
		if min, ok := toFloat(rng[0]); ok {
			p.Min = &min
		}
		if max, ok := toFloat(rng[1]); ok {
			p.Max = &max
		}
	}
	if v, ok := raw["default"]; ok {
		p.Default = v
	}
	if v, ok := raw["enum_values"].([]any); ok {
		for _, e := range v {
			if s, ok := e.(string); ok {
				p.EnumValues = append(p.EnumValues, s)
			}
		}
	}
	if v, ok := raw["description"].(string); ok {
		p.Description = v
	}
	if v, ok := raw["semantic_hints"].([]any); ok {
		for _, h := range v {
			if s, ok := h.(string); ok {
				p.SemanticHints = append(p.SemanticHints, s)
			}
		}
	}
	if v, ok := raw["computed"].(string); ok {
		p.Computed = v
	}
	if v, ok := raw["depends_on"].([]any); ok {
		for _, d := range v {
			if s, ok := d.(string); ok {
				p.DependsOn = append(p.DependsOn, s)
			}
		}
	}
	return p
}

// parseModifierOverride builds a ModifierOverride from one raw record
// found under a workflow's "modifiers" mapping, keyed by phrase.
func parseModifierOverride(raw map[string]any) *model.ModifierOverride {
	mod := &model.ModifierOverride{Params: map[string]any{}}
	for k, v := range raw {
		if k == "negative_signals" {
			if list, ok := v.([]any); ok {
				for _, s := range list {
					if str, ok := s.(string); ok {
						mod.NegativeSignals = append(mod.NegativeSignals, str)
					}
				}
			}
			continue
		}
		mod.Params[k] = v
	}
	return mod
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}
