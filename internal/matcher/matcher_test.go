package matcher

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routersupervisor/internal/embeddings"
	"routersupervisor/internal/model"
)

type fakeSource struct {
	workflows []*model.WorkflowDefinition
}

func (s *fakeSource) Workflows() []*model.WorkflowDefinition { return s.workflows }

func benchWorkflow() *model.WorkflowDefinition {
	return &model.WorkflowDefinition{
		Name:            "picnic_table",
		Description:     "build a picnic table with a bench",
		TriggerKeywords: []string{"picnic", "table", "bench"},
		ShapePatterns:   []string{"flat_like"},
		Steps:           []*model.WorkflowStep{{Tool: "create_mesh", Params: map[string]any{}}},
	}
}

func towerWorkflow() *model.WorkflowDefinition {
	return &model.WorkflowDefinition{
		Name:            "lighthouse_tower",
		Description:     "build a tall lighthouse tower",
		TriggerKeywords: []string{"tower", "lighthouse"},
		ShapePatterns:   []string{"tower_like"},
		Steps:           []*model.WorkflowStep{{Tool: "create_mesh", Params: map[string]any{}}},
	}
}

func TestKeywordMatcher_ScoresByMatchedFraction(t *testing.T) {
	src := &fakeSource{workflows: []*model.WorkflowDefinition{benchWorkflow(), towerWorkflow()}}
	m := NewKeywordMatcher(src)

	candidates, err := m.Match(context.Background(), "build me a picnic table", model.SceneContext{})
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "picnic_table", candidates[0].WorkflowName)
	assert.InDelta(t, 2.0/3.0, candidates[0].Score, 1e-9)
}

func TestKeywordMatcher_NoMatchOmitsCandidate(t *testing.T) {
	src := &fakeSource{workflows: []*model.WorkflowDefinition{benchWorkflow()}}
	m := NewKeywordMatcher(src)

	candidates, err := m.Match(context.Background(), "render a car interior", model.SceneContext{})
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestPatternMatcher_MatchesProportions(t *testing.T) {
	src := &fakeSource{workflows: []*model.WorkflowDefinition{benchWorkflow(), towerWorkflow()}}
	m := NewPatternMatcher(src)

	tall := model.SceneContext{Proportions: model.ProportionInfo{IsTall: true}}
	candidates, err := m.Match(context.Background(), "", tall)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "lighthouse_tower", candidates[0].WorkflowName)
	assert.Equal(t, 1.0, candidates[0].Score)
}

func TestPatternMatcher_NoPredicateSatisfiedOmitsCandidate(t *testing.T) {
	src := &fakeSource{workflows: []*model.WorkflowDefinition{towerWorkflow()}}
	m := NewPatternMatcher(src)

	flat := model.SceneContext{Proportions: model.ProportionInfo{IsFlat: true}}
	candidates, err := m.Match(context.Background(), "", flat)
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestSemanticMatcher_RefreshThenMatchScoresSimilarity(t *testing.T) {
	src := &fakeSource{workflows: []*model.WorkflowDefinition{benchWorkflow(), towerWorkflow()}}
	m := NewSemanticMatcher(src, embeddings.NewLocalEmbedder(""))
	m.Refresh(context.Background())

	candidates, err := m.Match(context.Background(), "a tall lighthouse tower", model.SceneContext{})
	require.NoError(t, err)
	require.Len(t, candidates, 2)

	scores := map[string]float64{}
	for _, c := range candidates {
		scores[c.WorkflowName] = c.Score
	}
	assert.Greater(t, scores["lighthouse_tower"], scores["picnic_table"])
}

func TestSemanticMatcher_InvalidateForcesReEmbed(t *testing.T) {
	src := &fakeSource{workflows: []*model.WorkflowDefinition{benchWorkflow()}}
	m := NewSemanticMatcher(src, embeddings.NewLocalEmbedder(""))
	m.Refresh(context.Background())

	m.Invalidate("picnic_table")
	_, stillCached := m.embeddings["picnic_table"]
	assert.False(t, stillCached)

	m.Refresh(context.Background())
	_, reembedded := m.embeddings["picnic_table"]
	assert.True(t, reembedded)
}

// fakeModifiers always returns a fixed payload so the aggregator's
// winner-only extraction call can be observed without a full
// internal/modifier dependency.
type fakeModifiers struct {
	calledWith *model.WorkflowDefinition
}

func (f *fakeModifiers) Extract(_ string, wf *model.WorkflowDefinition) (map[string]any, error) {
	f.calledWith = wf
	return map[string]any{"ok": true}, nil
}

func defaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{ConfidenceHigh: 0.70, ConfidenceMedium: 0.50}
}

// singleScoreMatcher returns a fixed score for one named workflow only, used
// to pin exact contribution arithmetic independent of the real matchers.
type singleScoreMatcher struct {
	name, workflow string
	weight, score  float64
}

func (s *singleScoreMatcher) Name() string    { return s.name }
func (s *singleScoreMatcher) Weight() float64 { return s.weight }
func (s *singleScoreMatcher) Match(_ context.Context, _ string, _ model.SceneContext) ([]Candidate, error) {
	if s.score <= 0 {
		return nil, nil
	}
	return []Candidate{{WorkflowName: s.workflow, Score: s.score}}, nil
}

func TestAggregator_LoneContributionNormalizesToItsOwnScore(t *testing.T) {
	// P6: a lone semantic match of 0.84 normalizes to 0.84, not 0.84*0.4 —
	// max_possible is per-contribution, not a constant sum over all matchers.
	src := &fakeSource{workflows: []*model.WorkflowDefinition{benchWorkflow()}}
	matchers := []Matcher{
		&singleScoreMatcher{name: "semantic", workflow: "picnic_table", weight: 0.40, score: 0.84},
		&singleScoreMatcher{name: "keyword", workflow: "picnic_table", weight: 0.40, score: 0},
		&singleScoreMatcher{name: "pattern", workflow: "picnic_table", weight: 0.20, score: 0},
	}
	agg := NewAggregator(matchers, src, nil, defaultAggregatorConfig())

	result, _, err := agg.Match(context.Background(), "some prompt", model.SceneContext{})
	require.NoError(t, err)
	assert.InDelta(t, 0.84, result.NormalizedScore, 1e-9)
}

func TestAggregator_AddingContributionNeverDecreasesRawScore(t *testing.T) {
	src := &fakeSource{workflows: []*model.WorkflowDefinition{benchWorkflow()}}

	onlyKeyword := []Matcher{
		&singleScoreMatcher{name: "keyword", workflow: "picnic_table", weight: 0.40, score: 0.6},
	}
	aggOne := NewAggregator(onlyKeyword, src, nil, defaultAggregatorConfig())
	rawOne := rawScoreOf(t, aggOne, "picnic_table")

	plusSemantic := []Matcher{
		&singleScoreMatcher{name: "keyword", workflow: "picnic_table", weight: 0.40, score: 0.6},
		&singleScoreMatcher{name: "semantic", workflow: "picnic_table", weight: 0.40, score: 0.5},
	}
	aggTwo := NewAggregator(plusSemantic, src, nil, defaultAggregatorConfig())
	rawTwo := rawScoreOf(t, aggTwo, "picnic_table")

	assert.GreaterOrEqual(t, rawTwo, rawOne)
}

func rawScoreOf(t *testing.T, agg *Aggregator, workflow string) float64 {
	t.Helper()
	result, _, err := agg.Match(context.Background(), "prompt", model.SceneContext{})
	require.NoError(t, err)
	require.Equal(t, workflow, result.WorkflowName)
	// ContributionsByMatcher stores raw per-matcher scores, so reconstruct
	// the weighted raw sum from the aggregator's matcher weights.
	var raw float64
	for _, m := range agg.matchers {
		if score, ok := result.ContributionsByMatcher[m.Name()]; ok {
			raw += m.Weight() * score
		}
	}
	return raw
}

func TestAggregator_ConfidenceLevelThresholds(t *testing.T) {
	src := &fakeSource{workflows: []*model.WorkflowDefinition{benchWorkflow()}}
	cfg := defaultAggregatorConfig()

	high := []Matcher{&singleScoreMatcher{name: "keyword", workflow: "picnic_table", weight: 1.0, score: 0.9}}
	result, _, err := NewAggregator(high, src, nil, cfg).Match(context.Background(), "prompt", model.SceneContext{})
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceHigh, result.ConfidenceLevel)

	medium := []Matcher{&singleScoreMatcher{name: "keyword", workflow: "picnic_table", weight: 1.0, score: 0.55}}
	result, _, err = NewAggregator(medium, src, nil, cfg).Match(context.Background(), "prompt", model.SceneContext{})
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceMedium, result.ConfidenceLevel)

	low := []Matcher{&singleScoreMatcher{name: "keyword", workflow: "picnic_table", weight: 1.0, score: 0.2}}
	result, _, err = NewAggregator(low, src, nil, cfg).Match(context.Background(), "prompt", model.SceneContext{})
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceLow, result.ConfidenceLevel)
}

func TestAggregator_SimpleTokenForcesLowConfidenceRegardlessOfScore(t *testing.T) {
	src := &fakeSource{workflows: []*model.WorkflowDefinition{benchWorkflow()}}
	matchers := []Matcher{&singleScoreMatcher{name: "keyword", workflow: "picnic_table", weight: 1.0, score: 0.95}}
	agg := NewAggregator(matchers, src, nil, defaultAggregatorConfig())

	result, _, err := agg.Match(context.Background(), "just a simple picnic table", model.SceneContext{})
	require.NoError(t, err)
	assert.Equal(t, model.ConfidenceLow, result.ConfidenceLevel)
	assert.InDelta(t, 0.95, result.NormalizedScore, 1e-9)
}

func TestAggregator_CallsModifierExtractorOnlyForWinner(t *testing.T) {
	src := &fakeSource{workflows: []*model.WorkflowDefinition{benchWorkflow(), towerWorkflow()}}
	matchers := []Matcher{
		&singleScoreMatcher{name: "keyword", workflow: "picnic_table", weight: 1.0, score: 0.9},
		&singleScoreMatcher{name: "keyword2", workflow: "lighthouse_tower", weight: 1.0, score: 0.1},
	}
	mods := &fakeModifiers{}
	agg := NewAggregator(matchers, src, mods, defaultAggregatorConfig())

	result, fallback, err := agg.Match(context.Background(), "prompt", model.SceneContext{})
	require.NoError(t, err)
	require.NotNil(t, mods.calledWith)
	assert.Equal(t, "picnic_table", mods.calledWith.Name)
	assert.Equal(t, map[string]any{"ok": true}, result.Modifiers)
	require.Len(t, fallback, 1)
	assert.Equal(t, "lighthouse_tower", fallback[0].WorkflowName)
}

func TestClamp01_P13FloatPrecisionClamp(t *testing.T) {
	assert.Equal(t, 1.0, clamp01(1.0+5e-10))
	assert.Equal(t, 0.0, clamp01(-5e-10))
	assert.Equal(t, 0.5, clamp01(0.5))
	// Outside the epsilon band, clamp01 still bounds into [0,1] rather than
	// propagating an out-of-range value.
	assert.Equal(t, 1.0, clamp01(1.5))
	assert.Equal(t, 0.0, clamp01(-1.5))
}
