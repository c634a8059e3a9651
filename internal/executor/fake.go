package executor

import (
	"context"
	"fmt"
	"sync"
)

// FakeClient is a deterministic, in-memory Client used by tests across the
// router (scene analyzer, firewall, supervisor). It records every call and
// query it receives and answers Query from a programmable response table,
// mirroring the teacher's mockExecutor/mockToolSpecificExecutor test
// doubles in internal/orchestration/helpers_test.go.
type FakeClient struct {
	mu sync.Mutex

	DispatchedCalls []Call
	Queries         []map[string]any

	// QueryResponse is returned verbatim from Query, unless Unreachable is
	// set.
	QueryResponse map[string]any

	// Unreachable makes Query/Dispatch return ErrUnreachable, simulating a
	// downed executor for degraded-context tests.
	Unreachable bool

	// FailTool, if set, makes Dispatch report that specific tool as failed
	// rather than ok.
	FailTool string
}

func NewFakeClient() *FakeClient {
	return &FakeClient{QueryResponse: map[string]any{}}
}

func (f *FakeClient) Dispatch(ctx context.Context, calls []Call) ([]Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Unreachable {
		return nil, ErrUnreachable
	}

	results := make([]Result, 0, len(calls))
	for _, c := range calls {
		f.DispatchedCalls = append(f.DispatchedCalls, c)
		if f.FailTool != "" && c.Tool == f.FailTool {
			results = append(results, Result{Tool: c.Tool, Ok: false, Err: fmt.Sprintf("fake: %s failed", c.Tool)})
			continue
		}
		results = append(results, Result{Tool: c.Tool, Ok: true, Output: map[string]any{"id": "fake-result"}})
	}
	return results, nil
}

func (f *FakeClient) Query(ctx context.Context, request map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.Unreachable {
		return nil, ErrUnreachable
	}
	f.Queries = append(f.Queries, request)
	return f.QueryResponse, nil
}
