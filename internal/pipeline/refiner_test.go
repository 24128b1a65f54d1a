package pipeline

import (
	"context"
	"testing"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/loom-ai/loom/internal/capability/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRefinerLoop(t *testing.T, gen capability.Generator, critic capability.Critic, config RefinerConfig) (*RefinerLoop, *Registry) {
	t.Helper()

	registry := NewRegistry(nil, critic)
	if gen != nil {
		require.NoError(t, registry.RegisterGenerator("markup", gen))
	}
	steps := NewStepExecutor(registry, capability.NewUsageTracker(), DefaultFixerChain(), nil, nil)
	return NewRefinerLoop(registry, steps, config, nil), registry
}

func refinerTestConfig() RefinerConfig {
	return RefinerConfig{
		MaxIterations:      3,
		ConvergenceEpsilon: 0.25,
		ConvergenceCount:   2,
		DefaultThreshold:   8.0,
	}
}

func TestRefineStopsAtThreshold(t *testing.T) {
	mock := providers.NewMockGenerator("<main>refined</main>")
	critic := &stubCritic{scores: []float64{9.0}}
	loop, _ := newRefinerLoop(t, mock, critic, refinerTestConfig())

	pctx := NewContext("webpage", RunConfig{})
	pctx.SetArtifact(capability.KindMarkup, "<main>raw</main>")

	outcome := loop.Refine(context.Background(), markupStep("gen-markup"), pctx, capability.KindMarkup)

	assert.Equal(t, "<main>refined</main>", outcome.Artifact)
	assert.Equal(t, 1, outcome.Iterations)
	assert.False(t, outcome.Converged)
	assert.Empty(t, outcome.Warning)
	assert.Equal(t, 9.0, outcome.Score.Overall)
	assert.Equal(t, "<main>refined</main>", pctx.Artifact(capability.KindMarkup))
	assert.Nil(t, pctx.QualityFeedback)
}

func TestRefineKeepsBestThroughScoringDip(t *testing.T) {
	mock := providers.NewMockGenerator("<main>v1</main>", "<main>v2</main>", "<main>v3</main>")
	critic := &stubCritic{scores: []float64{5.0, 7.0, 6.0}}

	config := refinerTestConfig()
	config.ConvergenceCount = 99
	loop, _ := newRefinerLoop(t, mock, critic, config)

	pctx := NewContext("webpage", RunConfig{})
	pctx.SetArtifact(capability.KindMarkup, "<main>raw</main>")

	outcome := loop.Refine(context.Background(), markupStep("gen-markup"), pctx, capability.KindMarkup)

	// The dip on the last iteration never discards the best candidate.
	assert.Equal(t, "<main>v2</main>", outcome.Artifact)
	assert.Equal(t, 7.0, outcome.Score.Overall)
	assert.Equal(t, 3, outcome.Iterations)
	assert.Contains(t, outcome.Warning, "exhausted")
	assert.Equal(t, "<main>v2</main>", pctx.Artifact(capability.KindMarkup))
	assert.NotEmpty(t, pctx.Warnings)
}

func TestRefineConvergesEarly(t *testing.T) {
	mock := providers.NewMockGenerator("<main>v1</main>", "<main>v2</main>", "<main>v3</main>")
	critic := &stubCritic{scores: []float64{5.0, 5.1, 5.2}}

	config := refinerTestConfig()
	config.ConvergenceCount = 1
	loop, _ := newRefinerLoop(t, mock, critic, config)

	pctx := NewContext("webpage", RunConfig{})
	pctx.SetArtifact(capability.KindMarkup, "<main>raw</main>")

	outcome := loop.Refine(context.Background(), markupStep("gen-markup"), pctx, capability.KindMarkup)

	assert.True(t, outcome.Converged)
	assert.Equal(t, 2, outcome.Iterations)
	assert.Equal(t, "<main>v2</main>", outcome.Artifact)
	assert.Equal(t, 2, mock.CallCount())
}

func TestRefineProducerFailureFallsBack(t *testing.T) {
	mock := providers.NewScriptedGenerator(
		[]string{"<main>v1</main>", ""},
		[]error{nil, capability.NewGenerationError("boom", nil)},
	)
	critic := &stubCritic{scores: []float64{5.0}}

	config := refinerTestConfig()
	config.ConvergenceCount = 99
	loop, _ := newRefinerLoop(t, mock, critic, config)

	pctx := NewContext("webpage", RunConfig{})
	pctx.SetArtifact(capability.KindMarkup, "<main>raw</main>")

	outcome := loop.Refine(context.Background(), markupStep("gen-markup"), pctx, capability.KindMarkup)

	// The first iteration completed, so its candidate is the fallback.
	assert.Equal(t, "<main>v1</main>", outcome.Artifact)
	assert.Equal(t, 2, outcome.Iterations)
	assert.Equal(t, "<main>v1</main>", pctx.Artifact(capability.KindMarkup))
	assert.NotEmpty(t, pctx.Warnings)
}

func TestRefineProducerFailureBeforeAnyCandidate(t *testing.T) {
	mock := providers.NewScriptedGenerator(nil, []error{capability.NewGenerationError("boom", nil)})
	critic := &stubCritic{scores: []float64{5.0}}
	loop, _ := newRefinerLoop(t, mock, critic, refinerTestConfig())

	pctx := NewContext("webpage", RunConfig{})
	pctx.SetArtifact(capability.KindMarkup, "<main>raw</main>")

	outcome := loop.Refine(context.Background(), markupStep("gen-markup"), pctx, capability.KindMarkup)

	// No iteration completed, so the unrefined artifact survives.
	assert.Equal(t, "<main>raw</main>", outcome.Artifact)
	assert.Equal(t, "<main>raw</main>", pctx.Artifact(capability.KindMarkup))
}

func TestRefineNilCriticPassesThrough(t *testing.T) {
	mock := providers.NewMockGenerator("<main>never</main>")
	loop, _ := newRefinerLoop(t, mock, nil, refinerTestConfig())

	pctx := NewContext("webpage", RunConfig{})
	pctx.SetArtifact(capability.KindMarkup, "<main>raw</main>")

	outcome := loop.Refine(context.Background(), markupStep("gen-markup"), pctx, capability.KindMarkup)

	assert.Equal(t, "<main>raw</main>", outcome.Artifact)
	assert.Equal(t, 0, outcome.Iterations)
	assert.Equal(t, 0, mock.CallCount())
}

func TestRefineScopesFeedbackToOneKind(t *testing.T) {
	markupGen := providers.NewMockGenerator("<main>v1</main>", "<main>v2</main>")
	styleGen := providers.NewMockGenerator("body { margin: 0; }", "body { margin: 1px; }")
	critic := &stubCritic{
		scores:       []float64{5.0, 6.0},
		improvements: []string{"add landmark roles"},
	}

	registry := NewRegistry(nil, critic)
	require.NoError(t, registry.RegisterGenerator("markup", markupGen))
	require.NoError(t, registry.RegisterGenerator("style", styleGen))
	steps := NewStepExecutor(registry, capability.NewUsageTracker(), DefaultFixerChain(), nil, nil)

	config := refinerTestConfig()
	config.MaxIterations = 2
	config.ConvergenceCount = 99
	loop := NewRefinerLoop(registry, steps, config, nil)

	pctx := NewContext("webpage", RunConfig{})
	pctx.SetArtifact(capability.KindMarkup, "<main>raw</main>")
	pctx.SetArtifact(capability.KindStyle, "body {}")

	// The markup pass exhausts its iterations with critic suggestions
	// pending.
	loop.Refine(context.Background(), markupStep("gen-markup"), pctx, capability.KindMarkup)

	// A step that exhausted validation retries would leave this set too.
	pctx.CorrectionFeedback = "previous attempt failed validation"

	loop.Refine(context.Background(), styleStep("gen-style"), pctx, capability.KindStyle)

	// The style producer starts clean; markup feedback never reaches it.
	calls := styleGen.Calls()
	require.NotEmpty(t, calls)
	assert.NotContains(t, calls[0].Request.Prompt, "add landmark roles")
	assert.NotContains(t, calls[0].Request.Prompt, "previous attempt failed validation")
	assert.Nil(t, pctx.QualityFeedback)
}

func TestRefineTiedScoreKeepsFirstCandidateDetail(t *testing.T) {
	mock := providers.NewMockGenerator("<main>v1</main>", "<main>v2</main>")
	critic := &stubCritic{
		scores: []float64{5.0, 5.0},
		details: []capability.QualityScore{
			{Scores: map[capability.Dimension]float64{capability.DimensionStructure: 9.0}, Overall: 5.0},
			{Scores: map[capability.Dimension]float64{capability.DimensionStructure: 1.0}, Overall: 5.0},
		},
	}

	config := refinerTestConfig()
	config.MaxIterations = 2
	config.ConvergenceCount = 99
	loop, _ := newRefinerLoop(t, mock, critic, config)

	pctx := NewContext("webpage", RunConfig{})
	pctx.SetArtifact(capability.KindMarkup, "<main>raw</main>")

	outcome := loop.Refine(context.Background(), markupStep("gen-markup"), pctx, capability.KindMarkup)

	// A tied score keeps the first candidate, and the returned detail
	// describes that same candidate.
	assert.Equal(t, "<main>v1</main>", outcome.Artifact)
	assert.Equal(t, 9.0, outcome.Score.Scores[capability.DimensionStructure])
}

func TestRefineCarriesCriticFeedbackIntoNextIteration(t *testing.T) {
	mock := providers.NewMockGenerator("<main>v1</main>", "<main>v2</main>")
	critic := &stubCritic{
		scores:       []float64{5.0, 9.0},
		improvements: []string{"tighten the hero copy"},
	}

	config := refinerTestConfig()
	config.ConvergenceCount = 99
	loop, _ := newRefinerLoop(t, mock, critic, config)

	pctx := NewContext("webpage", RunConfig{})
	pctx.SetArtifact(capability.KindMarkup, "<main>raw</main>")

	outcome := loop.Refine(context.Background(), markupStep("gen-markup"), pctx, capability.KindMarkup)

	require.Equal(t, 2, outcome.Iterations)
	calls := mock.Calls()
	require.Len(t, calls, 2)
	assert.NotContains(t, calls[0].Request.Prompt, "tighten the hero copy")
	assert.Contains(t, calls[1].Request.Prompt, "tighten the hero copy")
}
