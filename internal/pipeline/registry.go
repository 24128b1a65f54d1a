package pipeline

import (
	"fmt"

	"github.com/loom-ai/loom/internal/capability"
)

// Registry holds the injected capability implementations the engine calls
// but does not own. It is immutable after construction, so one registry
// serves concurrent independent runs.
type Registry struct {
	generators map[string]capability.Generator
	validator  capability.Validator
	critic     capability.Critic
}

// NewRegistry creates a Registry with the shared validator and critic.
// Either may be nil: a nil validator accepts everything, a nil critic
// disables refinement.
func NewRegistry(validator capability.Validator, critic capability.Critic) *Registry {
	return &Registry{
		generators: make(map[string]capability.Generator),
		validator:  validator,
		critic:     critic,
	}
}

// RegisterGenerator binds a generator to a capability name. Registering
// the same name twice is a wiring bug and returns an error.
func (r *Registry) RegisterGenerator(name string, gen capability.Generator) error {
	if name == "" {
		return fmt.Errorf("capability name is required")
	}
	if _, dup := r.generators[name]; dup {
		return fmt.Errorf("capability %q already registered", name)
	}
	r.generators[name] = gen
	return nil
}

// Generator resolves a capability name. Referencing an unregistered
// capability is a programming contract violation.
func (r *Registry) Generator(name string) (capability.Generator, error) {
	gen, exists := r.generators[name]
	if !exists {
		return nil, fmt.Errorf("no generator registered for capability %q", name)
	}
	return gen, nil
}

// Validator returns the shared validator, or nil when none is configured.
func (r *Registry) Validator() capability.Validator {
	return r.validator
}

// Critic returns the shared critic, or nil when none is configured.
func (r *Registry) Critic() capability.Critic {
	return r.critic
}
