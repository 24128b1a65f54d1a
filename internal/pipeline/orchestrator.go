package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/loom-ai/loom/internal/capability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator is the top-level driver that runs one pipeline end-to-end.
// It holds no run-specific mutable state beyond the capability registry,
// the checkpoint store, and the usage tracker (all keyed by correlation
// id), so concurrent independent runs are safe.
type Orchestrator struct {
	registry    *Registry
	checkpoints *CheckpointStore
	tracker     *capability.UsageTracker
	steps       *StepExecutor
	parallel    *ParallelExecutor
	refiner     *RefinerLoop
	crossCheck  *CrossLayerValidator
	maxRetries  int
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option is a functional option for configuring the Orchestrator.
type Option func(*orchestratorConfig)

type orchestratorConfig struct {
	logger     *slog.Logger
	tracer     trace.Tracer
	maxRetries int
	refiner    RefinerConfig
	crossCheck CrossCheckConfig
	fixers     *FixerChain
	builder    RequestBuilder
}

// WithLogger configures the orchestrator to use the given structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *orchestratorConfig) {
		c.logger = logger
	}
}

// WithTracer configures OpenTelemetry tracing for pipeline execution.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *orchestratorConfig) {
		c.tracer = tracer
	}
}

// WithMaxRetries bounds the self-correction loop per step.
func WithMaxRetries(n int) Option {
	return func(c *orchestratorConfig) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRefinerConfig sets the producer/critic loop tuning constants.
func WithRefinerConfig(cfg RefinerConfig) Option {
	return func(c *orchestratorConfig) {
		c.refiner = cfg
	}
}

// WithCrossCheckConfig sets the cross-layer validation configuration.
func WithCrossCheckConfig(cfg CrossCheckConfig) Option {
	return func(c *orchestratorConfig) {
		c.crossCheck = cfg
	}
}

// WithFixerChain sets the auto-fix transform applied before validation.
func WithFixerChain(fixers *FixerChain) Option {
	return func(c *orchestratorConfig) {
		c.fixers = fixers
	}
}

// WithRequestBuilder overrides how steps are rendered into generation
// requests.
func WithRequestBuilder(builder RequestBuilder) Option {
	return func(c *orchestratorConfig) {
		c.builder = builder
	}
}

// DefaultRefinerConfig returns the standard refiner tuning. The numeric
// values are empirical starting points; production deployments override
// them through configuration.
func DefaultRefinerConfig() RefinerConfig {
	return RefinerConfig{
		MaxIterations:      3,
		ConvergenceEpsilon: 0.25,
		ConvergenceCount:   2,
		Thresholds: map[capability.ArtifactKind]float64{
			capability.KindMarkup:   8.0,
			capability.KindStyle:    7.5,
			capability.KindBehavior: 7.0,
			capability.KindCopy:     6.5,
		},
		DefaultThreshold: 7.0,
	}
}

// NewOrchestrator creates an Orchestrator with injected capabilities and
// an explicit checkpoint store. Default configuration: maxRetries 2,
// DefaultRefinerConfig, DefaultCrossCheckConfig, DefaultFixerChain,
// slog.Default(), no tracer.
func NewOrchestrator(registry *Registry, checkpoints *CheckpointStore, tracker *capability.UsageTracker, opts ...Option) *Orchestrator {
	cfg := &orchestratorConfig{
		logger:     slog.Default(),
		maxRetries: 2,
		refiner:    DefaultRefinerConfig(),
		crossCheck: DefaultCrossCheckConfig(),
		fixers:     DefaultFixerChain(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	steps := NewStepExecutor(registry, tracker, cfg.fixers, cfg.builder, cfg.logger)

	return &Orchestrator{
		registry:    registry,
		checkpoints: checkpoints,
		tracker:     tracker,
		steps:       steps,
		parallel:    NewParallelExecutor(steps, cfg.logger),
		refiner:     NewRefinerLoop(registry, steps, cfg.refiner, cfg.logger),
		crossCheck:  NewCrossLayerValidator(cfg.crossCheck),
		maxRetries:  cfg.maxRetries,
		logger:      cfg.logger,
		tracer:      cfg.tracer,
	}
}

// RunPipeline executes the definition against the initial context and
// returns the assembled result. The result always carries the best
// available partial artifacts, even when the run aborts.
func (o *Orchestrator) RunPipeline(ctx context.Context, def *Definition, pctx *Context) *Result {
	start := time.Now()

	if o.tracer != nil {
		var span trace.Span
		ctx, span = o.tracer.Start(ctx, "pipeline.run",
			trace.WithAttributes(
				attribute.String("pipeline.type", def.Type),
				attribute.String("pipeline.correlation_id", pctx.CorrelationID.String()),
				attribute.Int("pipeline.stage_count", len(def.Stages)),
			),
		)
		defer span.End()
	}

	// Checkpoints for this run are released at run end regardless of
	// outcome; they are run-scoped diagnostics, not durable state.
	defer o.checkpoints.Clear(pctx.CorrelationID)

	if err := o.preflight(def); err != nil {
		pctx.AppendError("definition rejected: %v", err)
		return o.assemble(def, pctx, start, nil, nil, &PipelineError{
			Code:    PipelineErrorInvalidDefinition,
			Message: err.Error(),
			Cause:   err,
		})
	}

	pctx.TotalSteps = def.StepCount()

	o.logger.InfoContext(ctx, "starting pipeline run",
		"pipeline_type", def.Type,
		"correlation_id", pctx.CorrelationID,
		"stages", len(def.Stages),
	)

	completed := 0
	timings := make(map[string]time.Duration)

	for i, stage := range def.Stages {
		select {
		case <-ctx.Done():
			pctx.AppendError("pipeline cancelled at stage %d: %v", i, ctx.Err())
			return o.assemble(def, pctx, start, timings, &completed, &PipelineError{
				Code:    PipelineErrorCancelled,
				Message: "pipeline run was cancelled",
				Cause:   ctx.Err(),
			})
		default:
		}

		pctx.AdvanceStep(i)

		stageStart := time.Now()

		if stage.Step != nil {
			step := *stage.Step
			if !step.shouldRun(pctx) {
				continue
			}

			// Checkpoint only steps that are about to execute; silently
			// skipped steps leave no trace.
			o.saveCheckpoint(pctx, i, stage.Name())

			result := o.steps.Execute(ctx, step, pctx, o.maxRetries)
			timings[step.ID] = result.Duration

			if result.Success {
				o.mergeArtifact(pctx, step, result.Output)
				completed++
				continue
			}

			if result.Fatal(step) {
				o.logger.ErrorContext(ctx, "required step failed, aborting",
					"step", step.ID,
					"error", result.Err,
				)
				return o.assemble(def, pctx, start, timings, &completed, &PipelineError{
					Code:    PipelineErrorStepFailed,
					Message: "required step failed",
					StepID:  step.ID,
					Cause:   result.Err,
				})
			}

			// Recoverable failure: keep the best available output and
			// continue with a warning already logged by the executor.
			if result.Output != "" {
				o.mergeArtifact(pctx, step, result.Output)
			}
			continue
		}

		group := *stage.Group
		o.saveCheckpoint(pctx, i, stage.Name())
		results := o.parallel.ExecuteGroup(ctx, group, pctx, o.maxRetries)
		timings[group.Name] = time.Since(stageStart)

		// Deterministic fan-in: merged output order follows declaration
		// order, not completion order. Successful branches are merged
		// before fatality is decided so an aborted result still carries
		// their outputs.
		compress := make(map[capability.ArtifactKind]bool)
		for _, step := range group.Steps {
			if step.CompressOutput {
				compress[step.Kind] = true
			}
		}
		for kind, merged := range MergeOutputs(group, results) {
			if compress[kind] {
				pctx.SetArtifact(kind, merged)
			} else {
				pctx.StoreArtifact(kind, merged)
			}
		}

		for j := range group.Steps {
			step := group.Steps[j]
			result := results[step.ID]
			if result == nil || result.Skipped {
				continue
			}
			if !result.Success && result.Fatal(step) {
				return o.assemble(def, pctx, start, timings, &completed, &PipelineError{
					Code:    PipelineErrorStepFailed,
					Message: "required branch failed",
					StepID:  step.ID,
					Cause:   result.Err,
				})
			}
		}
		completed++
	}

	// Quality refinement for refinable artifact kinds.
	for _, kind := range def.RefinableKinds() {
		producer := def.ProducerFor(kind)
		if producer == nil || pctx.Artifact(kind) == "" {
			continue
		}
		outcome := o.refiner.Refine(ctx, *producer, pctx, kind)
		if outcome.Warning != "" {
			o.logger.InfoContext(ctx, "refinement stopped early",
				"kind", kind,
				"iterations", outcome.Iterations,
				"reason", outcome.Warning,
			)
		}
	}

	// Final consistency pass across completed artifacts.
	ok, issues := o.crossCheck.Validate(pctx)
	if !ok {
		for _, issue := range issues {
			pctx.AppendWarning("cross-layer: %s", issue.String())
		}
		if o.crossCheck.Blocking() {
			return o.assemble(def, pctx, start, timings, &completed, &PipelineError{
				Code:    PipelineErrorStepFailed,
				Message: "cross-layer validation failed",
			})
		}
	}

	o.logger.InfoContext(ctx, "pipeline run complete",
		"correlation_id", pctx.CorrelationID,
		"completed_steps", completed,
		"duration", time.Since(start),
	)

	return o.assemble(def, pctx, start, timings, &completed, nil)
}

// saveCheckpoint snapshots the context before a stage executes. A snapshot
// failure is diagnostic loss, not a run failure.
func (o *Orchestrator) saveCheckpoint(pctx *Context, index int, name string) {
	if err := o.checkpoints.Save(pctx.CorrelationID, index, name, pctx); err != nil {
		pctx.AppendWarning("checkpoint save failed at stage %d: %v", index, err)
	}
}

// mergeArtifact applies a step's output to the context, compressing it
// into a digest when the step asks for it.
func (o *Orchestrator) mergeArtifact(pctx *Context, step Step, output string) {
	if step.CompressOutput {
		pctx.SetArtifact(step.Kind, output)
		return
	}
	pctx.StoreArtifact(step.Kind, output)
}

// preflight verifies that every capability the definition references is
// registered, so execution never hits an unregistered generator.
func (o *Orchestrator) preflight(def *Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	check := func(step *Step) error {
		_, err := o.registry.Generator(step.Capability)
		return err
	}

	for _, stage := range def.Stages {
		if stage.Step != nil {
			if err := check(stage.Step); err != nil {
				return err
			}
		}
		if stage.Group != nil {
			for i := range stage.Group.Steps {
				if err := check(&stage.Group.Steps[i]); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// assemble builds the final Result from the context and accumulated
// telemetry.
func (o *Orchestrator) assemble(def *Definition, pctx *Context, start time.Time, timings map[string]time.Duration, completed *int, pipelineErr *PipelineError) *Result {
	result := &Result{
		CorrelationID: pctx.CorrelationID,
		Success:       pipelineErr == nil,
		Artifacts:     cloneArtifacts(pctx.Artifacts),
		Errors:        append([]string(nil), pctx.Errors...),
		Warnings:      append([]string(nil), pctx.Warnings...),
		TotalSteps:    def.StepCount(),
		ElapsedMS:     time.Since(start).Milliseconds(),
		StepTimings:   timings,
		TokensUsed:    o.tracker.Total(pctx.CorrelationID).Total(),
		TokensPerStep: o.tracker.PerStep(pctx.CorrelationID),
		Err:           pipelineErr,
	}
	if completed != nil {
		result.CompletedSteps = *completed
	}
	return result
}
