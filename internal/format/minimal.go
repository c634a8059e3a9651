package format

// MinimalFormatter returns only essential result fields for 80%+ size reduction.
type MinimalFormatter struct {
	opts FormatOptions
}

// essentialFields defines the fields to keep for each response shape the
// router's MCP tools return.
var essentialFields = map[string][]string{
	// set_goal / execute responses
	"goal": {"status", "workflow_name", "resolved", "unresolved", "message"},
	// process_call / execute's emitted calls
	"call": {"tool", "reason", "session_id"},
	// import_workflow responses
	"import": {"status", "name", "overwritten"},
	// get_status responses
	"status": {"workflow_count", "metrics"},
	// Generic default
	"default": {"id", "status", "confidence", "result"},
}

// Format transforms a response to minimal format.
func (f *MinimalFormatter) Format(response any) (any, error) {
	data, err := toMap(response)
	if err != nil {
		return response, nil
	}

	if innerResult, hasResult := data["result"]; hasResult {
		if innerMap, ok := innerResult.(map[string]any); ok {
			data = innerMap
		}
	}

	responseType := detectResponseType(data)
	fields := essentialFields[responseType]
	if fields == nil {
		fields = essentialFields["default"]
	}

	result := make(map[string]any)
	for _, field := range fields {
		if v, exists := data[field]; exists && !isEmpty(v) {
			result[field] = v
		}
	}

	if errMsg, hasErr := data["error"]; hasErr {
		result["error"] = errMsg
	}
	if errCode, hasCode := data["error_code"]; hasCode {
		result["error_code"] = errCode
	}

	if f.opts.MaxArrayLength > 0 {
		result = truncateArrays(result, f.opts.MaxArrayLength)
	}

	if len(result) == 0 {
		return simplifyResponse(data), nil
	}

	return result, nil
}

// Level returns FormatMinimal.
func (f *MinimalFormatter) Level() FormatLevel {
	return FormatMinimal
}

// detectResponseType identifies the type of response based on fields present.
func detectResponseType(data map[string]any) string {
	if _, has := data["workflow_count"]; has {
		return "status"
	}
	if _, has := data["overwritten"]; has {
		return "import"
	}
	if _, has := data["tool"]; has {
		return "call"
	}
	if _, has := data["workflow_name"]; has {
		return "goal"
	}
	return "default"
}

// simplifyResponse creates a minimal representation of any response.
func simplifyResponse(data map[string]any) map[string]any {
	result := make(map[string]any)

	priorityFields := []string{"id", "status", "success", "result", "confidence", "count", "error"}

	for _, field := range priorityFields {
		if v, exists := data[field]; exists && !isEmpty(v) {
			if nested, ok := v.(map[string]any); ok {
				result[field] = simplifyNested(nested)
			} else {
				result[field] = v
			}
		}
	}

	if len(result) == 0 {
		result["status"] = "ok"
	}

	return result
}

// simplifyNested reduces a nested map to its key values.
func simplifyNested(data map[string]any) any {
	if id, has := data["id"]; has {
		return id
	}
	if name, has := data["name"]; has {
		return name
	}
	return len(data)
}
