// Package supervisor implements the top-level orchestrator: it ingests one
// goal or one intercepted tool call, drives the scene analyzer, matcher,
// resolver, registry/expander, and firewall in order, and reports every
// decision to the telemetry sink.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"routersupervisor/internal/catalog"
	"routersupervisor/internal/config"
	"routersupervisor/internal/firewall"
	"routersupervisor/internal/matcher"
	"routersupervisor/internal/model"
	"routersupervisor/internal/registry"
	"routersupervisor/internal/resolver"
	"routersupervisor/internal/scene"
	"routersupervisor/internal/telemetry"
	"routersupervisor/internal/vectorstore"
)

// ErrNoPendingGoal is returned (wrapped) by Execute when a session has no
// ready goal waiting, i.e. SetGoal was never called or its last result was
// not "ready".
var ErrNoPendingGoal = errors.New("supervisor: no ready goal pending for session")

// Status is the terminal state of a SetGoal call.
type Status string

const (
	StatusReady      Status = "ready"
	StatusNeedsInput Status = "needs_input"
	StatusNoMatch    Status = "no_match"
)

// GoalResult is set_goal's response shape (spec.md §4.12/§6).
type GoalResult struct {
	Status            Status                    `json:"status"`
	WorkflowName      string                    `json:"workflow,omitempty"`
	Resolved          map[string]any            `json:"resolved,omitempty"`
	Unresolved        []resolver.UnresolvedParameter `json:"unresolved,omitempty"`
	ResolutionSources map[string]resolver.Source `json:"resolution_sources,omitempty"`
	Message           string                    `json:"message,omitempty"`
}

// pendingResolution is the short-lived, in-memory cache of a session's last
// ready-to-execute goal (Open Question 4: explicit Execute is required, so
// this is not durable per-session state, just a handle to what Execute
// replays; see DESIGN.md).
type pendingResolution struct {
	workflowName string
	resolved     map[string]any
	confidence   model.ConfidenceLevel
	prompt       string
}

// StatusSnapshot is get_status's response shape: registry, vector-store,
// and matcher health.
type StatusSnapshot struct {
	WorkflowCount    int                      `json:"workflow_count"`
	VectorStoreStats map[model.Namespace]int  `json:"vector_store_stats"`
	Metrics          model.SupervisorMetrics  `json:"metrics"`
}

// ImportResult is import_workflow's response shape.
type ImportResult struct {
	Status      string `json:"status"`
	Name        string `json:"name"`
	Overwritten bool   `json:"overwritten"`
}

// Pipeline wires every component into the two public entry points plus the
// execute/import/status operations of spec.md §6.
type Pipeline struct {
	cfg        *config.Config
	analyzer   *scene.Analyzer
	aggregator *matcher.Aggregator
	resolver   *resolver.Resolver
	registry   *registry.Registry
	expander   *registry.Expander
	firewall   *firewall.Firewall
	loader     *catalog.Loader
	store      *vectorstore.Store
	sink       *telemetry.Sink
	semantic   *matcher.SemanticMatcher

	mu      sync.Mutex
	pending map[string]pendingResolution
	chunked *catalog.ChunkedImporter
}

// Deps bundles every component Pipeline needs, constructed once in
// cmd/routersupervisor's composition root.
type Deps struct {
	Config     *config.Config
	Analyzer   *scene.Analyzer
	Aggregator *matcher.Aggregator
	Resolver   *resolver.Resolver
	Registry   *registry.Registry
	Expander   *registry.Expander
	Firewall   *firewall.Firewall
	Loader     *catalog.Loader
	Store      *vectorstore.Store
	Sink       *telemetry.Sink
	Semantic   *matcher.SemanticMatcher
}

// New constructs a Pipeline.
func New(d Deps) *Pipeline {
	return &Pipeline{
		cfg:        d.Config,
		analyzer:   d.Analyzer,
		aggregator: d.Aggregator,
		resolver:   d.Resolver,
		registry:   d.Registry,
		expander:   d.Expander,
		firewall:   d.Firewall,
		loader:     d.Loader,
		store:      d.Store,
		sink:       d.Sink,
		semantic:   d.Semantic,
		pending:    map[string]pendingResolution{},
		chunked:    catalog.NewChunkedImporter(),
	}
}

// SetGoal implements spec.md §4.12's goal-submission entry point. It never
// panics: an internal error is recovered, logged, and surfaced as a
// structured error return, matching §7's propagation policy.
func (p *Pipeline) SetGoal(ctx context.Context, sessionID, prompt string, resolvedParams map[string]any) (result GoalResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("supervisor: recovered panic in SetGoal: %v", r)
			err = fmt.Errorf("supervisor: internal error processing goal")
		}
	}()

	sc := p.analyzer.Analyze(ctx)

	ensemble, _, matchErr := p.aggregator.Match(ctx, prompt, sc)
	if matchErr != nil {
		return GoalResult{}, fmt.Errorf("supervisor: matching prompt: %w", matchErr)
	}
	if ensemble.WorkflowName == "" {
		p.record("set_goal", prompt, sessionID, "", "", nil, 0)
		return GoalResult{Status: StatusNoMatch, Message: "no workflow matched this prompt"}, nil
	}

	wf, ok := p.registry.Get(ensemble.WorkflowName)
	if !ok {
		return GoalResult{}, fmt.Errorf("supervisor: matched workflow %q is not in the registry", ensemble.WorkflowName)
	}

	provided := map[string]any{}
	for k, v := range ensemble.Modifiers {
		provided[k] = v
	}
	for k, v := range resolvedParams {
		provided[k] = v // explicit always wins (§4.12 step 3)
	}

	resolution, resolveErr := p.resolver.Resolve(ctx, wf, prompt, provided)
	if resolveErr != nil {
		return GoalResult{}, fmt.Errorf("supervisor: resolving parameters: %w", resolveErr)
	}

	p.clearPending(sessionID)

	if len(resolution.Unresolved) > 0 {
		p.record("set_goal", prompt, sessionID, wf.Name, ensemble.ConfidenceLevel, nil, 0)
		return GoalResult{
			Status:            StatusNeedsInput,
			WorkflowName:      wf.Name,
			Resolved:          resolution.Resolved,
			Unresolved:        resolution.Unresolved,
			ResolutionSources: resolution.Sources,
			Message:           "additional parameters are required before this workflow can run",
		}, nil
	}

	for name, source := range resolution.Sources {
		if source != resolver.SourceModifier {
			continue
		}
		if learnErr := p.resolver.Learn(ctx, wf, name, prompt, resolution.Resolved[name]); learnErr != nil {
			log.Printf("supervisor: failed to persist learned mapping for %s.%s: %v", wf.Name, name, learnErr)
		}
	}

	p.setPending(sessionID, pendingResolution{
		workflowName: wf.Name,
		resolved:     resolution.Resolved,
		confidence:   ensemble.ConfidenceLevel,
		prompt:       prompt,
	})

	p.record("set_goal", prompt, sessionID, wf.Name, ensemble.ConfidenceLevel, nil, 0)
	return GoalResult{
		Status:            StatusReady,
		WorkflowName:       wf.Name,
		Resolved:           resolution.Resolved,
		ResolutionSources:  resolution.Sources,
	}, nil
}

// Execute expands the session's last ready goal into a final, firewall-
// validated tool-call list (Open Question 4: requires an explicit call,
// never triggered implicitly). The pending resolution is cleared whether
// Execute succeeds or fails, since a failed expansion should not silently
// retry against stale state on the next interception.
func (p *Pipeline) Execute(ctx context.Context, sessionID string) (calls []model.CorrectedToolCall, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("supervisor: recovered panic in Execute: %v", r)
			err = fmt.Errorf("supervisor: internal error executing goal")
		}
	}()

	pending, ok := p.takePending(sessionID)
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrNoPendingGoal, sessionID)
	}

	wf, ok := p.registry.Get(pending.workflowName)
	if !ok {
		return nil, fmt.Errorf("supervisor: workflow %q no longer in the registry", pending.workflowName)
	}

	sc := p.analyzer.Analyze(ctx)

	level := pending.confidence
	if !p.cfg.Features.EnableWorkflowAdaptation {
		level = model.ConfidenceNone
	}

	expanded, expandErr := p.expander.Expand(ctx, wf, pending.resolved, sc, level, pending.prompt, sessionID)
	if expandErr != nil {
		return nil, fmt.Errorf("supervisor: expanding workflow %q: %w", wf.Name, expandErr)
	}

	asCalls := make([]model.ToolCall, len(expanded))
	for i, c := range expanded {
		asCalls[i] = model.ToolCall{Tool: c.Tool, Params: c.Params}
	}

	final, rules, validateErr := p.validate(asCalls, sc, sessionID)
	if validateErr != nil {
		p.record("execute", pending.prompt, sessionID, wf.Name, level, blockedRule(validateErr), 0)
		return nil, validateErr
	}

	p.record("execute", pending.prompt, sessionID, wf.Name, level, rules, len(final))
	return final, nil
}

// ProcessCall implements spec.md §4.12's single-call interception entry
// point: analyze, then run the unified firewall/override rule set.
func (p *Pipeline) ProcessCall(ctx context.Context, sessionID, toolName string, params map[string]any) (calls []model.CorrectedToolCall, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("supervisor: recovered panic in ProcessCall: %v", r)
			err = fmt.Errorf("supervisor: internal error processing call")
		}
	}()

	sc := p.analyzer.Analyze(ctx)
	call := model.ToolCall{Tool: toolName, Params: params}

	final, rules, validateErr := p.validate([]model.ToolCall{call}, sc, sessionID)
	if validateErr != nil {
		p.record("process_call", toolName, sessionID, "", "", blockedRule(validateErr), 0)
		return nil, validateErr
	}

	p.record("process_call", toolName, sessionID, "", "", rules, len(final))
	return final, nil
}

// blockedRule extracts the firing rule name from a *firewall.BlockedError
// for telemetry, or nil if err is not a block.
func blockedRule(err error) []string {
	var blocked *firewall.BlockedError
	if errors.As(err, &blocked) {
		return []string{blocked.Rule}
	}
	return nil
}

// validate runs calls through the firewall only when both enable_firewall
// and enable_overrides are on (the two config flags the corpus's original
// distinct concepts were unified under — see DESIGN.md), otherwise passing
// every call through, and returns the final calls plus the distinct rule
// reasons actually applied.
func (p *Pipeline) validate(calls []model.ToolCall, sc model.SceneContext, sessionID string) ([]model.CorrectedToolCall, []string, error) {
	if !p.cfg.Features.EnableFirewall || !p.cfg.Features.EnableOverrides {
		out := make([]model.CorrectedToolCall, len(calls))
		for i, c := range calls {
			out[i] = model.CorrectedToolCall{Tool: c.Tool, Params: c.Params, SessionID: sessionID, Reason: model.ReasonPassthrough}
		}
		return out, nil, nil
	}

	final, err := p.firewall.Validate(calls, sc, sessionID)
	if err != nil {
		return nil, nil, err
	}

	seen := map[string]bool{}
	var rules []string
	for _, c := range final {
		if c.Reason == model.ReasonPassthrough || c.Reason == model.ReasonWorkflowStep || seen[string(c.Reason)] {
			continue
		}
		seen[string(c.Reason)] = true
		rules = append(rules, string(c.Reason))
	}
	return final, rules, nil
}

// ImportWorkflow loads a single workflow from inline content and publishes
// it into the registry, invalidating its semantic-matcher embedding so the
// next match sees the new description.
func (p *Pipeline) ImportWorkflow(content []byte, sourceName string, overwrite bool) (ImportResult, error) {
	snap, loadErr := p.loader.LoadAll()
	if loadErr != nil {
		return ImportResult{}, fmt.Errorf("supervisor: reloading catalog before import: %w", loadErr)
	}
	// Workflows already published (including earlier imports, which are not
	// on disk) stay in the snapshot, so a name collision with any of them is
	// detected and publishing does not drop them.
	for _, existing := range p.registry.Workflows() {
		if _, ok := snap.Workflows[existing.Name]; !ok {
			snap.Workflows[existing.Name] = existing
		}
	}

	wf, existed, err := p.loader.ImportWorkflow(snap, content, sourceName, overwrite)
	if err != nil {
		return ImportResult{}, err
	}

	return p.publish(snap, wf, existed), nil
}

// publish replaces the registry's snapshot, then invalidates and
// immediately re-embeds the imported workflow's semantic-matcher
// description so it is never left stale between an import and the next
// catalog reload, shared by ImportWorkflow and ImportFinalize.
func (p *Pipeline) publish(snap *catalog.Snapshot, wf *model.WorkflowDefinition, existed bool) ImportResult {
	p.registry.Load(snap)
	if p.semantic != nil {
		p.semantic.Invalidate(wf.Name)
		p.semantic.Refresh(context.Background())
	}
	return ImportResult{Status: "ok", Name: wf.Name, Overwritten: existed}
}

// ImportInit starts a chunked import session for a payload too large for a
// single import_workflow call (spec.md §6's "chunked session" input mode)
// and returns its session ID.
func (p *Pipeline) ImportInit(contentType, sourceName string) string {
	return p.chunked.Init(contentType, sourceName)
}

// ImportAppend adds a chunk of raw content to an in-flight chunked import
// session.
func (p *Pipeline) ImportAppend(sessionID string, chunk []byte) error {
	return p.chunked.Append(sessionID, chunk)
}

// ImportAbort discards an in-flight chunked import session.
func (p *Pipeline) ImportAbort(sessionID string) error {
	return p.chunked.Abort(sessionID)
}

// ImportFinalize completes a chunked import session through the same
// registry-publish and semantic-matcher invalidation path as ImportWorkflow.
func (p *Pipeline) ImportFinalize(sessionID string, overwrite bool) (ImportResult, error) {
	snap, loadErr := p.loader.LoadAll()
	if loadErr != nil {
		return ImportResult{}, fmt.Errorf("supervisor: reloading catalog before import: %w", loadErr)
	}

	wf, existed, err := p.chunked.Finalize(sessionID, p.loader, snap, overwrite)
	if err != nil {
		return ImportResult{}, err
	}

	return p.publish(snap, wf, existed), nil
}

// GetStatus reports registry, vector-store, and telemetry health.
func (p *Pipeline) GetStatus() StatusSnapshot {
	workflows := p.registry.Workflows()
	return StatusSnapshot{
		WorkflowCount:    len(workflows),
		VectorStoreStats: p.store.Stats(),
		Metrics:          p.sink.Metrics(),
	}
}

func (p *Pipeline) setPending(sessionID string, pr pendingResolution) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[sessionID] = pr
}

func (p *Pipeline) clearPending(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, sessionID)
}

func (p *Pipeline) takePending(sessionID string) (pendingResolution, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.pending[sessionID]
	delete(p.pending, sessionID)
	return pr, ok
}

func (p *Pipeline) record(operation, input, sessionID, workflowName string, confidence model.ConfidenceLevel, rules []string, emitted int) {
	if p.sink == nil {
		return
	}
	p.sink.Record(model.TelemetryEvent{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		Operation:    operation,
		Input:        input,
		WorkflowName: workflowName,
		Confidence:   confidence,
		AppliedRules: rules,
		EmittedCalls: emitted,
	})
}
