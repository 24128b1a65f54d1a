package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/loom-ai/loom/internal/types"
)

// StepExecutor runs one step with a bounded self-correction retry loop:
// transient generation failures are retried, and invalid output is
// regenerated with the validator's issues injected as correction feedback.
type StepExecutor struct {
	registry     *Registry
	tracker      *capability.UsageTracker
	fixers       *FixerChain
	buildRequest RequestBuilder
	logger       *slog.Logger
}

// NewStepExecutor creates a StepExecutor. A nil builder falls back to
// DefaultRequestBuilder and a nil logger to slog.Default().
func NewStepExecutor(registry *Registry, tracker *capability.UsageTracker, fixers *FixerChain, builder RequestBuilder, logger *slog.Logger) *StepExecutor {
	if builder == nil {
		builder = DefaultRequestBuilder
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StepExecutor{
		registry:     registry,
		tracker:      tracker,
		fixers:       fixers,
		buildRequest: builder,
		logger:       logger,
	}
}

// Execute runs the self-correction loop for one step against the given
// context. For attempt in 0..=maxRetries: generate (with any correction
// feedback from the previous attempt), retry transient call failures,
// validate, and on invalid output carry the joined issue list into the
// next attempt. Exhausted retries return success=false with warnings; the
// caller decides whether that is fatal based on the step flags.
//
// The context is mutated in place: RetryAttempt, CorrectionFeedback, and
// the error/warning logs. The produced artifact is returned in the result,
// not merged; merging stays with the orchestrating goroutine.
func (e *StepExecutor) Execute(ctx context.Context, step Step, pctx *Context, maxRetries int) *StepResult {
	start := time.Now()
	result := &StepResult{StepID: step.ID, Kind: step.Kind}

	gen, err := e.registry.Generator(step.Capability)
	if err != nil {
		// Capabilities are checked at run start; reaching this is a
		// wiring contract violation.
		panic(err)
	}

	scope := capability.UsageScope{CorrelationID: pctx.CorrelationID, StepID: step.ID}

	for attempt := 0; attempt <= maxRetries; attempt++ {
		result.Attempts = attempt + 1
		pctx.RetryAttempt = attempt

		req := e.buildRequest(step, pctx)

		genResult, genErr := gen.Generate(ctx, req)
		if genErr != nil {
			if capability.IsRetryable(genErr) && attempt < maxRetries {
				e.logger.WarnContext(ctx, "transient generation failure, retrying",
					"step", step.ID,
					"attempt", attempt,
					"error", genErr,
				)
				continue
			}

			result.Err = genErr
			result.Duration = time.Since(start)
			pctx.AppendError("step %s: generation failed: %v", step.ID, genErr)
			return result
		}

		result.Usage = result.Usage.Add(genResult.Usage)
		if e.tracker != nil {
			e.tracker.Record(scope, genResult.Usage)
		}

		text, applied := e.fixers.Apply(genResult.Text, step.Kind)
		if len(applied) > 0 {
			e.logger.DebugContext(ctx, "auto-fixes applied",
				"step", step.ID,
				"fixes", applied,
			)
		}

		validator := e.registry.Validator()
		if validator == nil {
			result.Success = true
			result.Output = text
			result.Duration = time.Since(start)
			pctx.CorrectionFeedback = ""
			return result
		}

		report, valErr := validator.Validate(ctx, text, step.Kind)
		if valErr != nil {
			if capability.IsRetryable(valErr) && attempt < maxRetries {
				continue
			}
			result.Err = valErr
			result.Duration = time.Since(start)
			pctx.AppendError("step %s: validation call failed: %v", step.ID, valErr)
			return result
		}

		if report.Valid {
			result.Success = true
			result.Output = text
			result.Duration = time.Since(start)
			pctx.CorrectionFeedback = ""
			return result
		}

		// Feedback-augmented regeneration: carry the issues into the
		// next attempt's prompt.
		pctx.CorrectionFeedback = report.FeedbackText()

		if attempt < maxRetries {
			e.logger.InfoContext(ctx, "artifact invalid, regenerating with feedback",
				"step", step.ID,
				"attempt", attempt,
				"issues", len(report.Issues),
			)
			continue
		}

		// Retries exhausted: keep the last output as best available and
		// surface the remaining issues as warnings.
		result.Output = text
		result.Err = types.NewError(types.PIPELINE_STEP_FAILED, "artifact still invalid after retries")
		result.Duration = time.Since(start)
		for _, issue := range report.Issues {
			result.Warnings = append(result.Warnings, issue.String())
		}
		pctx.AppendWarning("step %s: output invalid after %d attempts: %s",
			step.ID, result.Attempts, report.FeedbackText())
		return result
	}

	// Unreachable: every loop path returns.
	result.Duration = time.Since(start)
	return result
}
