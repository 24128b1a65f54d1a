package pipeline

import (
	"context"
	"log/slog"

	"github.com/loom-ai/loom/internal/capability"
)

// RefinerConfig holds the tuning constants for the producer/critic loop.
// These are empirical knobs, so they live in configuration rather than as
// literals at the call sites.
type RefinerConfig struct {
	// MaxIterations bounds the loop unconditionally.
	MaxIterations int

	// ConvergenceEpsilon is the minimum per-iteration score gain that
	// still counts as progress.
	ConvergenceEpsilon float64

	// ConvergenceCount is the number of consecutive low-delta iterations
	// after which the loop stops early.
	ConvergenceCount int

	// Thresholds maps artifact kinds to their adaptive quality bar.
	// Higher-visibility kinds carry a higher bar than atomic ones.
	Thresholds map[capability.ArtifactKind]float64

	// DefaultThreshold applies to kinds missing from Thresholds.
	DefaultThreshold float64
}

// Threshold returns the adaptive quality bar for a kind.
func (c RefinerConfig) Threshold(kind capability.ArtifactKind) float64 {
	if threshold, ok := c.Thresholds[kind]; ok {
		return threshold
	}
	return c.DefaultThreshold
}

// RefinerState tracks the best artifact seen across iterations. BestScore
// is monotonically non-decreasing: it is only overwritten by a strictly
// higher score, so a late scoring dip never discards a good candidate.
type RefinerState struct {
	Best          string    `json:"best,omitempty"`
	BestScore     float64   `json:"best_score"`
	HasBest       bool      `json:"has_best"`
	ScoreHistory  []float64 `json:"score_history"`
	IterationUsed int       `json:"iterations_used"`
	LowDeltaCount int       `json:"low_delta_count"`
}

// observe records one iteration's candidate and score, updating the best
// only on strict improvement.
func (s *RefinerState) observe(candidate string, score float64) {
	s.ScoreHistory = append(s.ScoreHistory, score)
	if !s.HasBest || score > s.BestScore {
		s.Best = candidate
		s.BestScore = score
		s.HasBest = true
	}
}

// converged applies the low-delta early-stopping heuristic over the score
// history.
func (s *RefinerState) converged(epsilon float64, count int) bool {
	n := len(s.ScoreHistory)
	if n < 2 {
		return false
	}
	if s.ScoreHistory[n-1]-s.ScoreHistory[n-2] < epsilon {
		s.LowDeltaCount++
	} else {
		s.LowDeltaCount = 0
	}
	return s.LowDeltaCount >= count
}

// RefineOutcome is the result of one refinement pass.
type RefineOutcome struct {
	Artifact   string
	Score      capability.QualityScore
	Iterations int
	Converged  bool
	Warning    string
}

// RefinerLoop is the iterative producer/critic quality loop. Each
// iteration regenerates the artifact with the critic's latest improvement
// suggestions, scores the candidate among the fixed artifacts, and stops
// on threshold, convergence, or the iteration cap. Failing to reach the
// threshold is not an error: the best-seen artifact is returned with a
// warning.
type RefinerLoop struct {
	registry *Registry
	steps    *StepExecutor
	config   RefinerConfig
	logger   *slog.Logger
}

// NewRefinerLoop creates a RefinerLoop.
func NewRefinerLoop(registry *Registry, steps *StepExecutor, config RefinerConfig, logger *slog.Logger) *RefinerLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &RefinerLoop{
		registry: registry,
		steps:    steps,
		config:   config,
		logger:   logger,
	}
}

// Refine runs the producer/critic loop for one artifact kind. The context
// enters with the unrefined artifact already merged; on return the refined
// (or best-seen) artifact is merged back. A producer failure aborts the
// loop and returns the last known-good artifact, or the unrefined input
// when no iteration completed.
func (l *RefinerLoop) Refine(ctx context.Context, producer Step, pctx *Context, kind capability.ArtifactKind) RefineOutcome {
	critic := l.registry.Critic()
	unrefined := pctx.Artifact(kind)

	if critic == nil || l.config.MaxIterations <= 0 {
		return RefineOutcome{Artifact: unrefined, Iterations: 0}
	}

	// Feedback is scoped to one refinement pass. Leftover validator or
	// critic feedback from earlier steps or kinds must not steer this
	// kind's producer prompts.
	pctx.CorrectionFeedback = ""
	pctx.QualityFeedback = nil

	threshold := l.config.Threshold(kind)
	state := &RefinerState{}
	var bestDetail capability.QualityScore

	for iteration := 0; iteration < l.config.MaxIterations; iteration++ {
		pctx.RefinerIteration = iteration
		state.IterationUsed = iteration + 1

		// Producer pass, carrying prior critic feedback via the context.
		gen, err := l.registry.Generator(producer.Capability)
		if err != nil {
			panic(err)
		}
		req := l.buildProducerRequest(producer, pctx)
		genResult, genErr := gen.Generate(ctx, req)
		if genErr != nil {
			l.logger.WarnContext(ctx, "producer failed, aborting refinement",
				"kind", kind,
				"iteration", iteration,
				"error", genErr,
			)
			pctx.AppendWarning("refiner %s: producer failed at iteration %d: %v", kind, iteration, genErr)
			return l.fallback(pctx, kind, state, unrefined, bestDetail)
		}
		if l.steps.tracker != nil {
			l.steps.tracker.Record(capability.UsageScope{
				CorrelationID: pctx.CorrelationID,
				StepID:        producer.ID,
			}, genResult.Usage)
		}
		candidate := genResult.Text

		// Critic pass over the fixed artifacts plus the new candidate.
		evaluated := cloneArtifacts(pctx.Artifacts)
		evaluated[kind] = candidate
		critique, critErr := critic.Evaluate(ctx, evaluated)
		if critErr != nil {
			pctx.AppendWarning("refiner %s: critic failed at iteration %d: %v", kind, iteration, critErr)
			return l.fallback(pctx, kind, state, unrefined, bestDetail)
		}

		overall := critique.Score.Overall
		// Same strict comparison as observe, so the detail always
		// describes the kept candidate.
		improved := !state.HasBest || overall > state.BestScore
		state.observe(candidate, overall)
		if improved {
			bestDetail = critique.Score
		}

		l.logger.DebugContext(ctx, "refiner iteration scored",
			"kind", kind,
			"iteration", iteration,
			"score", overall,
			"best", state.BestScore,
			"threshold", threshold,
		)

		if overall >= threshold {
			pctx.SetArtifact(kind, candidate)
			pctx.QualityFeedback = nil
			return RefineOutcome{
				Artifact:   candidate,
				Score:      critique.Score,
				Iterations: iteration + 1,
			}
		}

		if state.converged(l.config.ConvergenceEpsilon, l.config.ConvergenceCount) {
			pctx.SetArtifact(kind, state.Best)
			pctx.QualityFeedback = nil
			return RefineOutcome{
				Artifact:   state.Best,
				Score:      bestDetail,
				Iterations: iteration + 1,
				Converged:  true,
				Warning:    "refinement converged below threshold",
			}
		}

		pctx.QualityFeedback = critique.Improvements
	}

	// Iteration cap reached without hitting the threshold: best-seen wins.
	outcome := l.fallback(pctx, kind, state, unrefined, bestDetail)
	outcome.Iterations = l.config.MaxIterations
	outcome.Warning = "refinement exhausted iterations below threshold"
	pctx.AppendWarning("refiner %s: best score %.2f below threshold %.2f after %d iterations",
		kind, state.BestScore, threshold, l.config.MaxIterations)
	return outcome
}

// fallback merges and returns the best-seen artifact, or the unrefined
// input when no iteration produced a scored candidate.
func (l *RefinerLoop) fallback(pctx *Context, kind capability.ArtifactKind, state *RefinerState, unrefined string, score capability.QualityScore) RefineOutcome {
	pctx.QualityFeedback = nil
	if state.HasBest {
		pctx.SetArtifact(kind, state.Best)
		return RefineOutcome{
			Artifact:   state.Best,
			Score:      score,
			Iterations: state.IterationUsed,
		}
	}
	return RefineOutcome{Artifact: unrefined, Iterations: state.IterationUsed}
}

// buildProducerRequest reuses the step executor's request builder so the
// producer sees the same context rendering as initial generation.
func (l *RefinerLoop) buildProducerRequest(producer Step, pctx *Context) capability.GenerationRequest {
	return l.steps.buildRequest(producer, pctx)
}

func cloneArtifacts(artifacts map[capability.ArtifactKind]string) map[capability.ArtifactKind]string {
	clone := make(map[capability.ArtifactKind]string, len(artifacts))
	for kind, text := range artifacts {
		clone[kind] = text
	}
	return clone
}
