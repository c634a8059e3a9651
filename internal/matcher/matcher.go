// Package matcher implements the ensemble intent matcher: independent
// keyword, semantic, and pattern matchers scored and combined by an
// Aggregator into a single winning workflow plus confidence level.
package matcher

import (
	"context"

	"routersupervisor/internal/model"
)

// Candidate is one matcher's scored guess at a workflow for a prompt.
type Candidate struct {
	WorkflowName string
	Score        float64
}

// Matcher is the capability every matching strategy satisfies. The
// aggregator treats the set of registered matchers polymorphically and
// must not assume any fixed count or set (see design notes on
// "polymorphic matchers") — keyword, semantic, and pattern are the
// initial three, not an exhaustive set.
type Matcher interface {
	// Name identifies the matcher for weighting and reporting.
	Name() string
	// Weight is this matcher's fixed contribution weight in [0,1].
	Weight() float64
	// Match scores every known workflow against prompt and scene,
	// returning zero or more candidates (workflows scoring exactly 0 may
	// be omitted; the aggregator treats an absent candidate as a
	// non-contributing score of 0).
	Match(ctx context.Context, prompt string, scene model.SceneContext) ([]Candidate, error)
}
