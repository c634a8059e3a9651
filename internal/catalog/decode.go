package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// decodeRaw normalizes either surface syntax (JSON or hierarchical YAML)
// into a plain map[string]any so the rest of the loader works from one
// shape regardless of which was on disk.
func decodeRaw(content []byte) (map[string]any, error) {
	if looksLikeJSON(content) {
		var m map[string]any
		if err := json.Unmarshal(content, &m); err != nil {
			return nil, err
		}
		return m, nil
	}

	var m map[string]any
	if err := yaml.Unmarshal(content, &m); err != nil {
		return nil, err
	}
	return normalizeYAMLMaps(m), nil
}

func looksLikeJSON(content []byte) bool {
	trimmed := strings.TrimSpace(string(content))
	return strings.HasPrefix(trimmed, "{")
}

// normalizeYAMLMaps recursively converts the map[interface{}]interface{}
// values yaml.v3 can produce for nested mappings into map[string]any, so
// downstream field access via string keys is uniform for both surface
// syntaxes.
func normalizeYAMLMaps(v any) map[string]any {
	out := map[string]any{}
	m, ok := v.(map[string]any)
	if !ok {
		return out
	}
	for k, val := range m {
		out[k] = normalizeValue(val)
	}
	return out
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := map[string]any{}
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case map[any]any:
		out := map[string]any{}
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}

// modifierDeclarationOrder recovers the source-file order of the top-level
// "modifiers" object's keys, which decodeRaw's map[string]any loses. The
// Modifier Extractor's phrase tie-break (spec §4.7) is declaration order,
// so this is read directly from the original bytes rather than the decoded
// map. Returns nil (not an error) if the file has no modifiers object.
func modifierDeclarationOrder(content []byte) ([]string, error) {
	if looksLikeJSON(content) {
		return jsonTopLevelKeyOrder(content, "modifiers")
	}
	return yamlTopLevelKeyOrder(content, "modifiers")
}

func yamlTopLevelKeyOrder(content []byte, field string) ([]string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(content, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return nil, nil
	}
	doc := root.Content[0]
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if doc.Content[i].Value != field {
			continue
		}
		val := doc.Content[i+1]
		if val.Kind != yaml.MappingNode {
			return nil, nil
		}
		keys := make([]string, 0, len(val.Content)/2)
		for j := 0; j+1 < len(val.Content); j += 2 {
			keys = append(keys, val.Content[j].Value)
		}
		return keys, nil
	}
	return nil, nil
}

// jsonTopLevelKeyOrder streams content's top-level object looking for
// field, then reads that nested object's keys in the order they appear.
func jsonTopLevelKeyOrder(content []byte, field string) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		if key == field {
			return jsonObjectKeyOrder(dec)
		}
		if err := jsonSkipValue(dec); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func jsonObjectKeyOrder(dec *json.Decoder) ([]string, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil
	}
	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := keyTok.(string)
		keys = append(keys, key)
		if err := jsonSkipValue(dec); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil { // consume closing '}'
		return nil, err
	}
	return keys, nil
}

// jsonSkipValue consumes one complete JSON value (scalar, object, or
// array) from dec without interpreting it.
func jsonSkipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(json.Delim)
	if !ok || (d != '{' && d != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		t, err := dec.Token()
		if err != nil {
			return err
		}
		if dd, ok := t.(json.Delim); ok {
			switch dd {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
