package pipeline

import (
	"fmt"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/loom-ai/loom/internal/types"
)

// RunConfig carries per-run quality and budget settings.
type RunConfig struct {
	// QualityTarget is the overall score the refiner aims for when no
	// per-kind threshold is configured.
	QualityTarget float64 `json:"quality_target"`

	// TokenBudget caps total token usage for the run (0 = unlimited).
	TokenBudget int `json:"token_budget"`
}

// Context is the mutable shared state threaded through all pipeline stages.
// The orchestrator exclusively owns one Context per run; forked sub-contexts
// used during fan-out are exclusively owned by their branch until merge, so
// no locking is needed.
type Context struct {
	// CorrelationID ties checkpoints, logs, and usage records to one run.
	CorrelationID types.ID `json:"correlation_id"`

	// PipelineType names the definition this context belongs to.
	PipelineType string `json:"pipeline_type"`

	// Artifacts maps artifact kind to the latest generated text.
	Artifacts map[capability.ArtifactKind]string `json:"artifacts"`

	// Digests holds the compressed summary per artifact kind. Always
	// recomputed whole from the latest artifact, never patched.
	Digests map[capability.ArtifactKind]Digest `json:"digests"`

	// StepIndex is the index of the stage currently executing. It is
	// monotonically non-decreasing for the lifetime of the run.
	StepIndex int `json:"step_index"`

	// TotalSteps is the number of stages in the definition.
	TotalSteps int `json:"total_steps"`

	// Errors and Warnings are ordered logs accumulated across stages.
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`

	// RetryAttempt counts self-correction retries within the current step.
	RetryAttempt int `json:"retry_attempt"`

	// RefinerIteration counts producer/critic iterations for the current
	// refinement pass.
	RefinerIteration int `json:"refiner_iteration"`

	// CorrectionFeedback carries validator issues from the previous failed
	// attempt into the next generation call.
	CorrectionFeedback string `json:"correction_feedback,omitempty"`

	// QualityFeedback carries the latest critic improvement suggestions.
	QualityFeedback []string `json:"quality_feedback,omitempty"`

	// BranchSection names the sub-unit of work a forked branch owns.
	// Empty on the root context.
	BranchSection string `json:"branch_section,omitempty"`

	// Config holds per-run quality and budget settings.
	Config RunConfig `json:"config"`
}

// NewContext creates a root Context for one pipeline run.
func NewContext(pipelineType string, cfg RunConfig) *Context {
	return &Context{
		CorrelationID: types.NewID(),
		PipelineType:  pipelineType,
		Artifacts:     make(map[capability.ArtifactKind]string),
		Digests:       make(map[capability.ArtifactKind]Digest),
		Config:        cfg,
	}
}

// Fork returns a deep copy of the context for a parallel branch. The branch
// owns the copy exclusively until the orchestrating goroutine merges it back.
func (c *Context) Fork(branchSection string) *Context {
	forked := &Context{
		CorrelationID:      c.CorrelationID,
		PipelineType:       c.PipelineType,
		Artifacts:          make(map[capability.ArtifactKind]string, len(c.Artifacts)),
		Digests:            make(map[capability.ArtifactKind]Digest, len(c.Digests)),
		StepIndex:          c.StepIndex,
		TotalSteps:         c.TotalSteps,
		CorrectionFeedback: c.CorrectionFeedback,
		BranchSection:      branchSection,
		Config:             c.Config,
	}

	for kind, text := range c.Artifacts {
		forked.Artifacts[kind] = text
	}
	for kind, digest := range c.Digests {
		forked.Digests[kind] = digest.Clone()
	}
	forked.Errors = append(forked.Errors, c.Errors...)
	forked.Warnings = append(forked.Warnings, c.Warnings...)
	forked.QualityFeedback = append(forked.QualityFeedback, c.QualityFeedback...)

	return forked
}

// AbsorbLogs appends the errors and warnings a forked branch accumulated
// beyond the fork point. Called on the orchestrating goroutine after the
// fan-in barrier.
func (c *Context) AbsorbLogs(branch *Context) {
	if len(branch.Errors) > len(c.Errors) {
		c.Errors = append(c.Errors, branch.Errors[len(c.Errors):]...)
	}
	if len(branch.Warnings) > len(c.Warnings) {
		c.Warnings = append(c.Warnings, branch.Warnings[len(c.Warnings):]...)
	}
}

// SetArtifact stores an artifact and recomputes its digest. The digest is
// derived state: it is always rebuilt from the full artifact text.
func (c *Context) SetArtifact(kind capability.ArtifactKind, text string) {
	c.Artifacts[kind] = text
	c.Digests[kind] = ComputeDigest(kind, text)
}

// StoreArtifact stores an artifact without building a digest, for steps
// whose output is not compressed into downstream prompts. Any stale digest
// for the kind is dropped rather than left to drift out of sync.
func (c *Context) StoreArtifact(kind capability.ArtifactKind, text string) {
	c.Artifacts[kind] = text
	delete(c.Digests, kind)
}

// Artifact returns the text for a kind, or "" when absent.
func (c *Context) Artifact(kind capability.ArtifactKind) string {
	return c.Artifacts[kind]
}

// AdvanceStep moves the step index forward. Moving backwards violates the
// monotonicity contract and panics; that is a programming error, not a
// runtime condition.
func (c *Context) AdvanceStep(index int) {
	if index < c.StepIndex {
		panic(fmt.Sprintf("pipeline: step index moved backwards: %d -> %d", c.StepIndex, index))
	}
	c.StepIndex = index
	c.RetryAttempt = 0
	c.CorrectionFeedback = ""
}

// AppendError records a step-level error in the ordered error log.
func (c *Context) AppendError(format string, args ...any) {
	c.Errors = append(c.Errors, fmt.Sprintf(format, args...))
}

// AppendWarning records a step-level warning in the ordered warning log.
func (c *Context) AppendWarning(format string, args ...any) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}
