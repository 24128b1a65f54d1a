package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/loom-ai/loom/internal/types"
)

// StepResult is the outcome of executing one step (or one branch of a
// parallel group).
type StepResult struct {
	StepID   string                  `json:"step_id"`
	Kind     capability.ArtifactKind `json:"kind"`
	Success  bool                    `json:"success"`
	Skipped  bool                    `json:"skipped,omitempty"`
	Output   string                  `json:"output,omitempty"`
	Attempts int                     `json:"attempts"`
	Usage    capability.TokenUsage   `json:"usage"`
	Duration time.Duration           `json:"duration"`
	Warnings []string                `json:"warnings,omitempty"`
	Err      error                   `json:"-"`
}

// Fatal reports whether this failure must abort the pipeline: the step is
// required and either unrecoverable or failed permanently.
func (r *StepResult) Fatal(step Step) bool {
	if r.Success || r.Skipped {
		return false
	}
	if !step.Required {
		return false
	}
	if !step.Recoverable {
		return true
	}
	// A recoverable step still aborts on a permanent capability error.
	return isPermanentCapabilityError(r.Err)
}

// isPermanentCapabilityError reports whether err is an auth or content
// policy failure, which is never retried and never downgraded.
func isPermanentCapabilityError(err error) bool {
	var loomErr *types.LoomError
	if !errors.As(err, &loomErr) {
		return false
	}
	switch loomErr.Code {
	case capability.ErrProviderUnauthorized, capability.ErrContentFiltered:
		return true
	default:
		return false
	}
}

// PipelineErrorCode classifies pipeline-level failures.
type PipelineErrorCode string

const (
	PipelineErrorStepFailed        PipelineErrorCode = "step_failed"
	PipelineErrorCancelled         PipelineErrorCode = "cancelled"
	PipelineErrorInvalidDefinition PipelineErrorCode = "invalid_definition"
)

// PipelineError represents an error that aborted a pipeline run.
type PipelineError struct {
	Code    PipelineErrorCode `json:"code"`
	Message string            `json:"message"`
	StepID  string            `json:"step_id,omitempty"`
	Cause   error             `json:"-"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.StepID != "" {
		if e.Cause != nil {
			return fmt.Sprintf("%s [step: %s]: %s (caused by: %v)", e.Code, e.StepID, e.Message, e.Cause)
		}
		return fmt.Sprintf("%s [step: %s]: %s", e.Code, e.StepID, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Result is the complete outcome of one pipeline run. It always carries the
// best available partial artifacts, even on failure.
type Result struct {
	CorrelationID  types.ID                           `json:"correlation_id"`
	Success        bool                               `json:"success"`
	Artifacts      map[capability.ArtifactKind]string `json:"artifacts"`
	Errors         []string                           `json:"errors,omitempty"`
	Warnings       []string                           `json:"warnings,omitempty"`
	TotalSteps     int                                `json:"total_steps"`
	CompletedSteps int                                `json:"completed_steps"`
	ElapsedMS      int64                              `json:"elapsed_ms"`
	StepTimings    map[string]time.Duration           `json:"step_timings,omitempty"`
	TokensUsed     int                                `json:"tokens_used"`
	TokensPerStep  map[string]int                     `json:"tokens_per_step,omitempty"`
	Err            *PipelineError                     `json:"error,omitempty"`
}
