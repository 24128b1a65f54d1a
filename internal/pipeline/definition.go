package pipeline

import (
	"fmt"

	"github.com/loom-ai/loom/internal/capability"
)

// Predicate decides whether a step should run for the given context.
// Predicates must be pure reads of the context.
type Predicate func(*Context) bool

// AlwaysRun is the default predicate.
func AlwaysRun(*Context) bool { return true }

// Step is one unit of generation work. Steps are immutable once a
// Definition is built.
type Step struct {
	// ID uniquely identifies the step within its definition.
	ID string

	// Capability names the registered generator that produces this step's
	// artifact.
	Capability string

	// Kind is the artifact kind this step produces.
	Kind capability.ArtifactKind

	// Required marks steps whose unrecovered failure aborts the pipeline.
	Required bool

	// Recoverable marks steps whose exhausted retries downgrade to a
	// warning instead of aborting.
	Recoverable bool

	// CompressOutput triggers a digest recompute after the artifact merges.
	CompressOutput bool

	// Refinable marks artifacts that pass through the refiner loop after
	// initial generation.
	Refinable bool

	// BranchSection names the sub-unit of work this step owns when it runs
	// inside a parallel group.
	BranchSection string

	// ShouldRun gates execution; nil means always run.
	ShouldRun Predicate
}

// shouldRun evaluates the gate predicate, defaulting to always-run.
func (s Step) shouldRun(pctx *Context) bool {
	if s.ShouldRun == nil {
		return true
	}
	return s.ShouldRun(pctx)
}

// ParallelGroup is a flat concurrent batch of steps. Branches have no
// relative execution-order guarantee, but merge order follows declaration
// order, not completion order.
type ParallelGroup struct {
	Name  string
	Steps []Step
}

// Stage is exactly one Step or one ParallelGroup.
type Stage struct {
	Step  *Step
	Group *ParallelGroup
}

// Name returns the stage's step id or group name.
func (s Stage) Name() string {
	if s.Step != nil {
		return s.Step.ID
	}
	if s.Group != nil {
		return s.Group.Name
	}
	return ""
}

// Definition is a declarative ordered list of stages for one pipeline type.
type Definition struct {
	Type   string
	Stages []Stage
}

// NewDefinition builds a validated Definition from stages.
func NewDefinition(pipelineType string, stages ...Stage) (*Definition, error) {
	def := &Definition{Type: pipelineType, Stages: stages}
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}

// StepStage wraps a Step as a sequential stage.
func StepStage(step Step) Stage {
	return Stage{Step: &step}
}

// GroupStage wraps a ParallelGroup as a stage.
func GroupStage(group ParallelGroup) Stage {
	return Stage{Group: &group}
}

// Validate checks structural invariants: every stage holds exactly one of
// step or group, step ids are unique, groups are non-empty, and artifact
// kinds outside groups are disjoint. Steps inside one group may share a
// kind since their outputs merge deterministically.
func (d *Definition) Validate() error {
	if d.Type == "" {
		return fmt.Errorf("pipeline type is required")
	}
	if len(d.Stages) == 0 {
		return fmt.Errorf("pipeline %q has no stages", d.Type)
	}

	seenIDs := make(map[string]struct{})
	seenKinds := make(map[capability.ArtifactKind]string)

	checkStep := func(step *Step, inGroup bool) error {
		if step.ID == "" {
			return fmt.Errorf("step with empty id in pipeline %q", d.Type)
		}
		if _, dup := seenIDs[step.ID]; dup {
			return fmt.Errorf("duplicate step id %q", step.ID)
		}
		seenIDs[step.ID] = struct{}{}

		if step.Capability == "" {
			return fmt.Errorf("step %q has no capability", step.ID)
		}
		if step.Kind == "" {
			return fmt.Errorf("step %q has no artifact kind", step.ID)
		}
		if !inGroup {
			if owner, taken := seenKinds[step.Kind]; taken {
				return fmt.Errorf("artifact kind %q claimed by both %q and %q", step.Kind, owner, step.ID)
			}
			seenKinds[step.Kind] = step.ID
		}
		return nil
	}

	for i, stage := range d.Stages {
		switch {
		case stage.Step != nil && stage.Group != nil:
			return fmt.Errorf("stage %d is both step and group", i)
		case stage.Step != nil:
			if err := checkStep(stage.Step, false); err != nil {
				return err
			}
		case stage.Group != nil:
			if stage.Group.Name == "" {
				return fmt.Errorf("stage %d group has no name", i)
			}
			if len(stage.Group.Steps) == 0 {
				return fmt.Errorf("group %q has no steps", stage.Group.Name)
			}
			for j := range stage.Group.Steps {
				if err := checkStep(&stage.Group.Steps[j], true); err != nil {
					return err
				}
			}
		default:
			return fmt.Errorf("stage %d is empty", i)
		}
	}

	return nil
}

// StepCount returns the number of stages, counting a group as one step.
func (d *Definition) StepCount() int {
	return len(d.Stages)
}

// RefinableKinds returns the artifact kinds flagged for refinement, in
// declaration order without duplicates.
func (d *Definition) RefinableKinds() []capability.ArtifactKind {
	var kinds []capability.ArtifactKind
	seen := make(map[capability.ArtifactKind]struct{})

	add := func(step *Step) {
		if !step.Refinable {
			return
		}
		if _, dup := seen[step.Kind]; dup {
			return
		}
		seen[step.Kind] = struct{}{}
		kinds = append(kinds, step.Kind)
	}

	for _, stage := range d.Stages {
		if stage.Step != nil {
			add(stage.Step)
		}
		if stage.Group != nil {
			for i := range stage.Group.Steps {
				add(&stage.Group.Steps[i])
			}
		}
	}

	return kinds
}

// ProducerFor returns the step that produces the given kind, preferring
// sequential steps over group branches. Used by the refiner to re-invoke
// the producer capability.
func (d *Definition) ProducerFor(kind capability.ArtifactKind) *Step {
	var groupMatch *Step
	for _, stage := range d.Stages {
		if stage.Step != nil && stage.Step.Kind == kind {
			return stage.Step
		}
		if stage.Group != nil && groupMatch == nil {
			for i := range stage.Group.Steps {
				if stage.Group.Steps[i].Kind == kind {
					groupMatch = &stage.Group.Steps[i]
					break
				}
			}
		}
	}
	return groupMatch
}
