// Pipeline definitions can be written in YAML and parsed into executable
// Definition structures.
//
// # YAML Structure Example
//
//	name: landing page
//	type: webpage
//	stages:
//	  - step:
//	      id: gen-markup
//	      capability: markup
//	      kind: markup
//	      required: true
//	      compress_output: true
//	      refinable: true
//	  - group:
//	      name: sections
//	      steps:
//	        - id: gen-hero
//	          capability: markup
//	          kind: markup
//	          section: hero
//	        - id: gen-footer
//	          capability: markup
//	          kind: markup
//	          section: footer
//	  - step:
//	      id: gen-style
//	      capability: style
//	      kind: style
//	      should_run: markup_present
//
// The should_run field references a predicate registered by name through
// RegisterPredicate, since closures do not round-trip YAML.
package pipeline

import (
	"fmt"
	"os"
	"sync"

	"github.com/loom-ai/loom/internal/capability"
	"gopkg.in/yaml.v3"
)

var (
	predicateMu sync.RWMutex
	predicates  = map[string]Predicate{
		"always": AlwaysRun,
	}
)

// RegisterPredicate binds a should_run predicate to a name for use in YAML
// definitions. Registering an existing name overwrites it.
func RegisterPredicate(name string, pred Predicate) {
	predicateMu.Lock()
	defer predicateMu.Unlock()
	predicates[name] = pred
}

// lookupPredicate resolves a predicate name.
func lookupPredicate(name string) (Predicate, bool) {
	predicateMu.RLock()
	defer predicateMu.RUnlock()
	pred, ok := predicates[name]
	return pred, ok
}

// YAMLDefinition is the top-level structure of a pipeline YAML file.
type YAMLDefinition struct {
	Name   string      `yaml:"name"`
	Type   string      `yaml:"type"`
	Stages []YAMLStage `yaml:"stages"`
}

// YAMLStage holds exactly one of step or group.
type YAMLStage struct {
	Step  *YAMLStep  `yaml:"step,omitempty"`
	Group *YAMLGroup `yaml:"group,omitempty"`
}

// YAMLStep mirrors Step for YAML parsing.
type YAMLStep struct {
	ID             string `yaml:"id"`
	Capability     string `yaml:"capability"`
	Kind           string `yaml:"kind"`
	Required       bool   `yaml:"required"`
	Recoverable    bool   `yaml:"recoverable"`
	CompressOutput bool   `yaml:"compress_output"`
	Refinable      bool   `yaml:"refinable"`
	Section        string `yaml:"section,omitempty"`
	ShouldRun      string `yaml:"should_run,omitempty"`
}

// YAMLGroup mirrors ParallelGroup for YAML parsing.
type YAMLGroup struct {
	Name  string     `yaml:"name"`
	Steps []YAMLStep `yaml:"steps"`
}

// LoadDefinition reads and parses a pipeline definition from a YAML file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline definition: %w", err)
	}
	return ParseDefinition(data)
}

// ParseDefinition parses YAML data into a validated Definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var raw YAMLDefinition
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline YAML: %w", err)
	}

	if raw.Type == "" {
		return nil, fmt.Errorf("pipeline type is required")
	}

	stages := make([]Stage, 0, len(raw.Stages))
	for i, rawStage := range raw.Stages {
		switch {
		case rawStage.Step != nil && rawStage.Group != nil:
			return nil, fmt.Errorf("stage %d: step and group are mutually exclusive", i)

		case rawStage.Step != nil:
			step, err := convertStep(*rawStage.Step)
			if err != nil {
				return nil, fmt.Errorf("stage %d: %w", i, err)
			}
			stages = append(stages, StepStage(step))

		case rawStage.Group != nil:
			group := ParallelGroup{Name: rawStage.Group.Name}
			for j, rawStep := range rawStage.Group.Steps {
				step, err := convertStep(rawStep)
				if err != nil {
					return nil, fmt.Errorf("stage %d step %d: %w", i, j, err)
				}
				group.Steps = append(group.Steps, step)
			}
			stages = append(stages, GroupStage(group))

		default:
			return nil, fmt.Errorf("stage %d: step or group is required", i)
		}
	}

	return NewDefinition(raw.Type, stages...)
}

// convertStep maps a YAML step to a Step, resolving the predicate name.
func convertStep(raw YAMLStep) (Step, error) {
	step := Step{
		ID:             raw.ID,
		Capability:     raw.Capability,
		Kind:           capability.ArtifactKind(raw.Kind),
		Required:       raw.Required,
		Recoverable:    raw.Recoverable,
		CompressOutput: raw.CompressOutput,
		Refinable:      raw.Refinable,
		BranchSection:  raw.Section,
	}

	if raw.ShouldRun != "" {
		pred, ok := lookupPredicate(raw.ShouldRun)
		if !ok {
			return Step{}, fmt.Errorf("step %q references unknown predicate %q", raw.ID, raw.ShouldRun)
		}
		step.ShouldRun = pred
	}

	return step, nil
}
