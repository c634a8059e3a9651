// Package apierr provides structured error handling with recovery
// suggestions for the router's MCP-facing operations.
//
// Error codes are organized into categories:
//   - 1xxx: Resource errors (workflow/session not found)
//   - 2xxx: Validation errors (bad parameter, bad catalog content)
//   - 3xxx: State errors (no pending goal, already imported)
//   - 4xxx: External errors (executor unreachable, embedding failed)
//   - 5xxx: Limit errors (too many steps, telemetry backlog)
package apierr

// Error codes for resource errors (1xxx).
const (
	// ErrWorkflowNotFound indicates a workflow name is not in the registry.
	ErrWorkflowNotFound = "ERR_1001_WORKFLOW_NOT_FOUND"
	// ErrSessionNotFound indicates a session id has no pending resolution.
	ErrSessionNotFound = "ERR_1002_SESSION_NOT_FOUND"
	// ErrToolNotFound indicates a tool name has no registered metadata.
	ErrToolNotFound = "ERR_1003_TOOL_NOT_FOUND"
)

// Error codes for validation errors (2xxx).
const (
	// ErrInvalidParameter indicates a parameter value failed validation
	// (out of range, wrong type, not one of the declared enum values).
	ErrInvalidParameter = "ERR_2001_INVALID_PARAMETER"
	// ErrMissingRequired indicates a client-required parameter was not
	// provided and no tier could resolve it.
	ErrMissingRequired = "ERR_2002_MISSING_REQUIRED"
	// ErrInvalidCatalogContent indicates an imported workflow or tool file
	// failed to decode or did not match the declared schema.
	ErrInvalidCatalogContent = "ERR_2003_INVALID_CATALOG_CONTENT"
	// ErrInvalidPrompt indicates an empty or unusable goal prompt.
	ErrInvalidPrompt = "ERR_2004_INVALID_PROMPT"
)

// Error codes for state errors (3xxx).
const (
	// ErrNoPendingGoal indicates Execute was called for a session with no
	// ready SetGoal result waiting.
	ErrNoPendingGoal = "ERR_3001_NO_PENDING_GOAL"
	// ErrWorkflowExists indicates an import collided with an existing
	// workflow name and overwrite was not set.
	ErrWorkflowExists = "ERR_3002_WORKFLOW_ALREADY_EXISTS"
	// ErrCallBlocked indicates the firewall blocked a call outright.
	ErrCallBlocked = "ERR_3003_CALL_BLOCKED"
)

// Error codes for external errors (4xxx).
const (
	// ErrExecutorUnreachable indicates the downstream executor could not
	// be queried or dispatched to.
	ErrExecutorUnreachable = "ERR_4001_EXECUTOR_UNREACHABLE"
	// ErrEmbeddingFailed indicates embedding generation failed.
	ErrEmbeddingFailed = "ERR_4002_EMBEDDING_FAILED"
	// ErrVectorStoreFailed indicates a vector store read or write failed.
	ErrVectorStoreFailed = "ERR_4003_VECTOR_STORE_FAILED"
)

// Error codes for limit errors (5xxx).
const (
	// ErrTooManySteps indicates an expanded workflow exceeded the
	// configured step budget.
	ErrTooManySteps = "ERR_5001_TOO_MANY_STEPS"
	// ErrTelemetryBacklog indicates the telemetry sink is dropping events
	// because its buffer is full.
	ErrTelemetryBacklog = "ERR_5002_TELEMETRY_BACKLOG"
)

// Category returns the category name for an error code.
func Category(code string) string {
	if len(code) < 8 {
		return "unknown"
	}
	switch code[4] {
	case '1':
		return "resource"
	case '2':
		return "validation"
	case '3':
		return "state"
	case '4':
		return "external"
	case '5':
		return "limit"
	default:
		return "unknown"
	}
}

// IsRetryable reports whether an error is potentially transient.
func IsRetryable(code string) bool {
	return Category(code) == "external"
}
