// Package executor defines the opaque channel the router dispatches tool
// calls through and queries scene state from. The executor itself —
// concrete tool semantics, transport, packaging — is out of scope (see
// spec.md §1); this package only defines the boundary interface and a
// deterministic in-memory stand-in used by tests and local development.
package executor

import (
	"context"
	"fmt"
)

// Client is the single opaque channel to the downstream tool executor.
// Dispatch sends an ordered tool-call sequence for execution; Query is the
// side-effect-free request form the Scene Context Analyzer uses to read
// current executor state. Both must respect ctx cancellation/deadline.
type Client interface {
	// Dispatch sends tool calls for execution in order. It returns one
	// result per call, including results for calls the executor itself
	// rejected (so the caller can log per-call outcomes).
	Dispatch(ctx context.Context, calls []Call) ([]Result, error)

	// Query issues a side-effect-free state request, e.g. for the current
	// scene snapshot. The request/response shapes are executor-specific;
	// the router treats both as opaque maps.
	Query(ctx context.Context, request map[string]any) (map[string]any, error)
}

// Call is one {tool, params} pair sent to Dispatch.
type Call struct {
	Tool   string
	Params map[string]any
}

// Result is one call's outcome.
type Result struct {
	Tool    string
	Ok      bool
	Output  any
	Err     string
}

// ErrUnreachable is returned (wrapped) by implementations when the
// executor cannot be reached at all, distinct from the executor reporting
// a normal per-call failure.
var ErrUnreachable = fmt.Errorf("executor: unreachable")
