package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/loom-ai/loom/internal/types"
)

// ParallelExecutor fans out a ParallelGroup concurrently and merges results
// deterministically. Fan-out is fail-soft: one branch's failure or panic is
// captured as a failed StepResult and never cancels its siblings; the group
// only completes once every branch has finished.
type ParallelExecutor struct {
	steps  *StepExecutor
	logger *slog.Logger
}

// NewParallelExecutor creates a ParallelExecutor delegating branch work to
// the given StepExecutor.
func NewParallelExecutor(steps *StepExecutor, logger *slog.Logger) *ParallelExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParallelExecutor{steps: steps, logger: logger}
}

// ExecuteGroup runs every branch of the group concurrently. Each branch
// receives an independent forked copy of the context overridden with its
// branch-specific section, so no two goroutines ever share a context.
// Branches whose predicate declines are recorded as skipped. The returned
// map holds one result per step id; forked logs are absorbed back into the
// parent context on the calling goroutine after the fan-in barrier.
func (e *ParallelExecutor) ExecuteGroup(ctx context.Context, group ParallelGroup, pctx *Context, maxRetries int) map[string]*StepResult {
	results := make([]*StepResult, len(group.Steps))
	forks := make([]*Context, len(group.Steps))

	var wg sync.WaitGroup
	for i, step := range group.Steps {
		if !step.shouldRun(pctx) {
			results[i] = &StepResult{StepID: step.ID, Kind: step.Kind, Skipped: true}
			continue
		}

		fork := pctx.Fork(step.BranchSection)
		forks[i] = fork

		wg.Add(1)
		go func(i int, step Step, fork *Context) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = &StepResult{
						StepID: step.ID,
						Kind:   step.Kind,
						Err: types.WrapError(types.PIPELINE_STEP_FAILED,
							fmt.Sprintf("branch %s panicked", step.ID),
							fmt.Errorf("%v", r)),
					}
				}
			}()
			results[i] = e.steps.Execute(ctx, step, fork, maxRetries)
		}(i, step, fork)
	}
	wg.Wait()

	// Back on the orchestrating goroutine: absorb branch logs in declared
	// order so the merged logs are deterministic.
	merged := make(map[string]*StepResult, len(group.Steps))
	for i, step := range group.Steps {
		if forks[i] != nil {
			pctx.AbsorbLogs(forks[i])
		}
		merged[step.ID] = results[i]
	}

	e.logger.DebugContext(ctx, "parallel group complete",
		"group", group.Name,
		"branches", len(group.Steps),
	)

	return merged
}

// MergeOutputs folds successful branch outputs into one text per artifact
// kind, in declared step order regardless of completion order. Branches
// that were skipped or failed contribute nothing.
func MergeOutputs(group ParallelGroup, results map[string]*StepResult) map[capability.ArtifactKind]string {
	parts := make(map[capability.ArtifactKind][]string)
	for _, step := range group.Steps {
		result := results[step.ID]
		if result == nil || !result.Success || result.Output == "" {
			continue
		}
		parts[step.Kind] = append(parts[step.Kind], result.Output)
	}

	merged := make(map[capability.ArtifactKind]string, len(parts))
	for kind, texts := range parts {
		merged[kind] = strings.Join(texts, "\n")
	}
	return merged
}
