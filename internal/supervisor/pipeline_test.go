package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routersupervisor/internal/adapter"
	"routersupervisor/internal/catalog"
	"routersupervisor/internal/config"
	"routersupervisor/internal/embeddings"
	"routersupervisor/internal/executor"
	"routersupervisor/internal/firewall"
	"routersupervisor/internal/matcher"
	"routersupervisor/internal/model"
	"routersupervisor/internal/modifier"
	"routersupervisor/internal/registry"
	"routersupervisor/internal/resolver"
	"routersupervisor/internal/scene"
	"routersupervisor/internal/telemetry"
	"routersupervisor/internal/vectorstore"
)

// testWorkflows are the fixtures every test in this file builds a Pipeline
// against: one workflow with no client-required parameters (ready
// immediately), one that requires a parameter the client must supply, and
// tool metadata the firewall rules key off of.
func testWorkflows() []*model.WorkflowDefinition {
	return []*model.WorkflowDefinition{
		{
			Name:            "add_cube",
			TriggerKeywords: []string{"cube"},
			Parameters:      map[string]*model.ParameterSchema{},
			Steps: []*model.WorkflowStep{
				{Tool: "mesh_add_cube", Params: map[string]any{}},
			},
		},
		{
			Name:            "extrude_faces",
			TriggerKeywords: []string{"extrude"},
			Parameters: map[string]*model.ParameterSchema{
				"distance": {Name: "distance", Type: model.ParamFloat},
			},
			Steps: []*model.WorkflowStep{
				{Tool: "mesh_extrude_region", Params: map[string]any{"distance": "$distance"}},
			},
		},
	}
}

func testTools() []*model.ToolMetadata {
	return []*model.ToolMetadata{
		{Name: "mesh_extrude_region", RequiresSelection: true},
		{Name: "object_delete"},
	}
}

type testHarness struct {
	pipeline *Pipeline
	exec     *executor.FakeClient
	sink     *telemetry.Sink
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	fake := executor.NewFakeClient()
	fake.QueryResponse = map[string]any{
		"mode":          "object",
		"active_object": "Cube",
		"objects": map[string]any{
			"Cube": map[string]any{
				"type":       "mesh",
				"dimensions": []any{1.0, 1.0, 1.0},
				"location":   []any{0.0, 0.0, 0.0},
			},
		},
		"topology": map[string]any{},
	}

	embedder := embeddings.NewLocalEmbedder("")
	store, err := vectorstore.New(vectorstore.DefaultConfig())
	require.NoError(t, err)

	reg := registry.New()
	reg.Load(&staticSource{workflows: testWorkflows()})

	keyword := matcher.NewKeywordMatcher(reg)
	pattern := matcher.NewPatternMatcher(reg)
	semantic := matcher.NewSemanticMatcher(reg, embedder)
	mods := modifier.NewExtractor(embedder)
	aggregator := matcher.NewAggregator(
		[]matcher.Matcher{keyword, pattern, semantic},
		reg,
		mods,
		matcher.AggregatorConfig{ConfidenceHigh: 0.70, ConfidenceMedium: 0.50},
	)

	res := resolver.New(store, embedder, resolver.DefaultConfig())
	exp := registry.NewExpander(adapter.New(embedder, adapter.DefaultConfig()))
	fw := firewall.New(testTools(), nil)
	analyzer := scene.New(fake, scene.Config{CacheTTL: 0})
	sink := telemetry.NewSink(100)

	loaderCfg := catalog.DefaultConfig()
	loaderCfg.Root = t.TempDir()
	loaderCfg.CachePath = ""
	loader, err := catalog.NewLoader(loaderCfg)
	require.NoError(t, err)

	cfg := config.Default()

	p := New(Deps{
		Config:     cfg,
		Analyzer:   analyzer,
		Aggregator: aggregator,
		Resolver:   res,
		Registry:   reg,
		Expander:   exp,
		Firewall:   fw,
		Loader:     loader,
		Store:      store,
		Sink:       sink,
		Semantic:   semantic,
	})

	h := &testHarness{pipeline: p, exec: fake, sink: sink}
	t.Cleanup(sink.Close)
	return h
}

type staticSource struct {
	workflows []*model.WorkflowDefinition
}

func (s *staticSource) WorkflowList() []*model.WorkflowDefinition { return s.workflows }

func TestSetGoal_MatchesAndReachesReady(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.pipeline.SetGoal(context.Background(), "s1", "add a cube", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusReady, result.Status)
	assert.Equal(t, "add_cube", result.WorkflowName)
}

func TestSetGoal_NoMatchReturnsNoMatchStatus(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.pipeline.SetGoal(context.Background(), "s1", "xyzzy plugh nonsense", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNoMatch, result.Status)
}

func TestSetGoal_MissingParameterReturnsNeedsInput(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.pipeline.SetGoal(context.Background(), "s1", "extrude the faces", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusNeedsInput, result.Status)
	require.Len(t, result.Unresolved, 1)
	assert.Equal(t, "distance", result.Unresolved[0].Name)
}

func TestSetGoal_ExplicitParamsResolveReady(t *testing.T) {
	h := newTestHarness(t)

	result, err := h.pipeline.SetGoal(context.Background(), "s1", "extrude the faces", map[string]any{"distance": 2.0})
	require.NoError(t, err)
	assert.Equal(t, StatusReady, result.Status)
	assert.Equal(t, 2.0, result.Resolved["distance"])
}

func TestExecute_WithoutPriorSetGoalFails(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.pipeline.Execute(context.Background(), "no-such-session")
	require.Error(t, err)
}

func TestExecute_ExpandsAndValidatesThenConsumesPending(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.pipeline.SetGoal(context.Background(), "s1", "add a cube", nil)
	require.NoError(t, err)

	calls, err := h.pipeline.Execute(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "mesh_add_cube", calls[0].Tool)

	// The pending resolution is consumed once; a second Execute for the
	// same session has nothing left to run.
	_, err = h.pipeline.Execute(context.Background(), "s1")
	require.Error(t, err)
}

func TestExecute_FirewallAutoFixPrependsSelection(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.pipeline.SetGoal(context.Background(), "s1", "extrude the faces", map[string]any{"distance": 1.5})
	require.NoError(t, err)

	calls, err := h.pipeline.Execute(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "mesh_select_all", calls[0].Tool)
	assert.Equal(t, model.ReasonSelectionFix, calls[0].Reason)
	assert.Equal(t, "mesh_extrude_region", calls[1].Tool)
}

func TestProcessCall_PlainCallPassesThrough(t *testing.T) {
	h := newTestHarness(t)

	calls, err := h.pipeline.ProcessCall(context.Background(), "s1", "mesh_noop", nil)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, model.ReasonPassthrough, calls[0].Reason)
}

func TestProcessCall_SelectionFixAutoCorrects(t *testing.T) {
	h := newTestHarness(t)

	calls, err := h.pipeline.ProcessCall(context.Background(), "s1", "mesh_extrude_region", map[string]any{})
	require.NoError(t, err)
	require.Len(t, calls, 2)
	assert.Equal(t, "mesh_select_all", calls[0].Tool)
}

func TestProcessCall_BlockedCallReturnsErrorAndRecordsTelemetry(t *testing.T) {
	h := newTestHarness(t)

	// The fake executor reports a populated scene (one object, "Cube"),
	// so object_delete is allowed; reconfigure it to report no objects at
	// all to trigger the no-object-to-delete block.
	h.exec.QueryResponse = map[string]any{
		"mode":    "object",
		"objects": map[string]any{},
	}

	_, err := h.pipeline.ProcessCall(context.Background(), "s1", "object_delete", map[string]any{})
	require.Error(t, err)

	require.Eventually(t, func() bool {
		for _, evt := range h.sink.Events() {
			if evt.Operation == "process_call" && len(evt.AppliedRules) == 1 && evt.AppliedRules[0] == "delete-no-object" {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func TestProcessCall_FirewallDisabledPassesThroughUnvalidated(t *testing.T) {
	h := newTestHarness(t)
	h.pipeline.cfg.Features.EnableFirewall = false

	// Would otherwise trigger selection-fix; disabled firewall means the
	// raw call goes out untouched.
	calls, err := h.pipeline.ProcessCall(context.Background(), "s1", "mesh_extrude_region", map[string]any{})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, model.ReasonPassthrough, calls[0].Reason)
}

func TestGetStatus_ReportsWorkflowCountAndMetrics(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.pipeline.SetGoal(context.Background(), "s1", "add a cube", nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return h.pipeline.GetStatus().Metrics.GoalsProcessed == 1
	}, time.Second, time.Millisecond)

	status := h.pipeline.GetStatus()
	assert.Equal(t, 2, status.WorkflowCount)
}

func TestImportWorkflow_AddsNewWorkflowToRegistry(t *testing.T) {
	h := newTestHarness(t)

	content := []byte(`
name: drill_hole
trigger_keywords: [drill, hole]
steps:
  - tool: mesh_inset_faces
    params: {}
`)

	result, err := h.pipeline.ImportWorkflow(content, "drill_hole.yaml", false)
	require.NoError(t, err)
	assert.Equal(t, "drill_hole", result.Name)
	assert.False(t, result.Overwritten)

	_, ok := h.pipeline.registry.Get("drill_hole")
	assert.True(t, ok)
}

func TestImportChunked_InitAppendFinalizePublishesWorkflow(t *testing.T) {
	h := newTestHarness(t)

	sessionID := h.pipeline.ImportInit("yaml", "bevel_edges.yaml")
	require.NotEmpty(t, sessionID)

	content := []byte(`
name: bevel_edges
trigger_keywords: [bevel]
steps:
  - tool: mesh_bevel
    params: {}
`)
	half := len(content) / 2

	require.NoError(t, h.pipeline.ImportAppend(sessionID, content[:half]))
	require.NoError(t, h.pipeline.ImportAppend(sessionID, content[half:]))

	result, err := h.pipeline.ImportFinalize(sessionID, false)
	require.NoError(t, err)
	assert.Equal(t, "bevel_edges", result.Name)
	assert.False(t, result.Overwritten)

	_, ok := h.pipeline.registry.Get("bevel_edges")
	assert.True(t, ok)
}

func TestImportChunked_AbortDiscardsSession(t *testing.T) {
	h := newTestHarness(t)

	sessionID := h.pipeline.ImportInit("yaml", "abandoned.yaml")

	require.NoError(t, h.pipeline.ImportAbort(sessionID))

	err := h.pipeline.ImportAppend(sessionID, []byte("name: x"))
	assert.Error(t, err)

	_, err = h.pipeline.ImportFinalize(sessionID, false)
	assert.Error(t, err)
}

func TestImportChunked_FinalizeUnknownSessionFails(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.pipeline.ImportFinalize("no-such-session", false)
	assert.Error(t, err)
}

func TestExecute_NoPendingGoalWrapsSentinel(t *testing.T) {
	h := newTestHarness(t)

	_, err := h.pipeline.Execute(context.Background(), "no-such-session")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPendingGoal)
}
