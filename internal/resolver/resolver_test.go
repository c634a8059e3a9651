package resolver

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"routersupervisor/internal/embeddings"
	"routersupervisor/internal/model"
	"routersupervisor/internal/vectorstore"
)

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	store, err := vectorstore.New(vectorstore.DefaultConfig())
	require.NoError(t, err)
	return New(store, embeddings.NewLocalEmbedder(""), DefaultConfig())
}

func thicknessWorkflow() *model.WorkflowDefinition {
	min, max := 0.01, 0.2
	return &model.WorkflowDefinition{
		Name: "table",
		Parameters: map[string]*model.ParameterSchema{
			"leg_thickness": {
				Name:          "leg_thickness",
				Type:          model.ParamFloat,
				Min:           &min,
				Max:           &max,
				SemanticHints: []string{"thin"},
			},
			"style": {
				Name:       "style",
				Type:       model.ParamEnum,
				EnumValues: []string{"rustic", "modern"},
			},
			"size": {
				Name:    "size",
				Type:    model.ParamFloat,
				Default: 1.0,
			},
			"surface_area": {
				Name:     "surface_area",
				Type:     model.ParamFloat,
				Computed: "width * depth",
			},
		},
	}
}

func TestResolve_ModifierTierWinsAndClampsRange(t *testing.T) {
	r := newTestResolver(t)
	wf := thicknessWorkflow()

	result, err := r.Resolve(context.Background(), wf, "make it thin", map[string]any{"leg_thickness": 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0.2, result.Resolved["leg_thickness"])
	assert.Equal(t, SourceModifier, result.Sources["leg_thickness"])
}

func TestResolve_EnumNormalization(t *testing.T) {
	r := newTestResolver(t)
	wf := thicknessWorkflow()

	result, err := r.Resolve(context.Background(), wf, "prompt", map[string]any{"style": `"Rustic"  `})
	require.NoError(t, err)
	assert.Equal(t, "rustic", result.Resolved["style"])
}

func TestResolve_EnumUnknownValueIsUnresolvedWithError(t *testing.T) {
	r := newTestResolver(t)
	wf := thicknessWorkflow()

	result, err := r.Resolve(context.Background(), wf, "prompt", map[string]any{"style": "gothic"})
	require.NoError(t, err)
	require.Len(t, result.Unresolved, 1)
	assert.Equal(t, "style", result.Unresolved[0].Name)
	assert.Contains(t, result.Unresolved[0].Error, "rustic")
}

func TestResolve_SkipsDefaultsAndComputedParameters(t *testing.T) {
	r := newTestResolver(t)
	wf := thicknessWorkflow()

	result, err := r.Resolve(context.Background(), wf, "prompt", map[string]any{})
	require.NoError(t, err)
	_, sizeUnresolved := result.Resolved["size"]
	assert.False(t, sizeUnresolved)
	for _, u := range result.Unresolved {
		assert.NotEqual(t, "size", u.Name)
		assert.NotEqual(t, "surface_area", u.Name)
	}
}

func TestResolve_UnresolvedWhenNoTierMatches(t *testing.T) {
	r := newTestResolver(t)
	wf := thicknessWorkflow()

	result, err := r.Resolve(context.Background(), wf, "paint the walls a bright blue color for the scene", map[string]any{})
	require.NoError(t, err)

	names := map[string]bool{}
	for _, u := range result.Unresolved {
		names[u.Name] = true
	}
	assert.True(t, names["leg_thickness"])
	assert.True(t, names["style"])
}

func TestResolve_LearnedMappingTierReusesStoredValue(t *testing.T) {
	r := newTestResolver(t)
	wf := thicknessWorkflow()
	ctx := context.Background()

	prompt := "please make the table legs really thin so it looks delicate"
	require.NoError(t, r.Learn(ctx, wf, "leg_thickness", prompt, 0.03))

	result, err := r.Resolve(ctx, wf, prompt, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 0.03, result.Resolved["leg_thickness"])
	assert.Equal(t, SourceLearned, result.Sources["leg_thickness"])
}

func TestLearn_NeverLearnsComputedParameters(t *testing.T) {
	r := newTestResolver(t)
	wf := thicknessWorkflow()
	ctx := context.Background()

	require.NoError(t, r.Learn(ctx, wf, "surface_area", "make it wider", 2.5))

	result, err := r.Resolve(ctx, wf, "make it wider", map[string]any{})
	require.NoError(t, err)
	for _, u := range result.Unresolved {
		assert.NotEqual(t, "surface_area", u.Name)
	}
}

func TestLocateRelevantHint_LiteralMatch(t *testing.T) {
	r := newTestResolver(t)
	match, relevant, err := r.locateRelevantHint(context.Background(), "make the legs thin please", []string{"thin"})
	require.NoError(t, err)
	assert.True(t, relevant)
	assert.Equal(t, 1.0, match.score)
	assert.Equal(t, "thin", match.promptText)
}

func TestLocateRelevantHint_NoOverlapIsNotRelevant(t *testing.T) {
	r := newTestResolver(t)
	_, relevant, err := r.locateRelevantHint(context.Background(), "paint the walls blue", []string{"leg thickness"})
	require.NoError(t, err)
	assert.False(t, relevant)
}

func TestExtractContext_ShortPromptReturnsWhole(t *testing.T) {
	r := newTestResolver(t)
	prompt := "make the legs thin"
	assert.Equal(t, prompt, r.extractContext(prompt, "thin"))
}

func TestExtractContext_LongPromptUsesSentenceWindow(t *testing.T) {
	r := newTestResolver(t)
	filler := strings.Repeat("This sentence exists only to pad the prompt length out. ", 10)
	prompt := filler + "I want the legs thin. It should still look sturdy overall. " + filler
	out := r.extractContext(prompt, "thin")
	assert.Contains(t, out, "I want the legs thin.")
	assert.Less(t, len(out), len(prompt))
}

func TestExtractContext_FallsBackToFixedWindowForShortSurroundingSentences(t *testing.T) {
	r := newTestResolver(t)
	// The sentence containing the hint and its immediate neighbors are all
	// short ("Hi." / "Ok." / "Bye."); the real bulk of the prompt sits in
	// far-away sentences, so the sentence window (too short) must give way
	// to the fixed 100-before/100-after window.
	prefix := strings.Repeat("x", 600) + ". "
	middle := "Hi. Ok. Bye. "
	suffix := strings.Repeat("y", 600)
	prompt := prefix + middle + suffix

	out := r.extractContext(prompt, "ok")
	assert.Contains(t, strings.ToLower(out), "ok")
	assert.LessOrEqual(t, len(out), 210)
}

func TestSplitSentenceSpans(t *testing.T) {
	prompt := "One. Two! Three?"
	spans := splitSentenceSpans(prompt)
	require.Len(t, spans, 3)
	assert.Equal(t, "One.", prompt[spans[0].start:spans[0].end])
	assert.Equal(t, " Two!", prompt[spans[1].start:spans[1].end])
	assert.Equal(t, " Three?", prompt[spans[2].start:spans[2].end])
}
