package providers

import (
	"context"
	"sync"

	"github.com/loom-ai/loom/internal/capability"
)

// MockCall records one call made to the mock generator.
type MockCall struct {
	Request capability.GenerationRequest
}

// MockGenerator implements capability.Generator for testing. Each call
// consumes the next scripted outcome: either a response text or an error.
// When the script runs out, the last outcome repeats.
type MockGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	index     int
	calls     []MockCall
}

// NewMockGenerator creates a mock that returns the given responses in order.
func NewMockGenerator(responses ...string) *MockGenerator {
	return &MockGenerator{
		responses: responses,
		errs:      make([]error, len(responses)),
	}
}

// NewScriptedGenerator creates a mock from parallel response/error slices.
// For each call i, errs[i] takes precedence over responses[i] when non-nil.
func NewScriptedGenerator(responses []string, errs []error) *MockGenerator {
	for len(errs) < len(responses) {
		errs = append(errs, nil)
	}
	for len(responses) < len(errs) {
		responses = append(responses, "")
	}
	return &MockGenerator{responses: responses, errs: errs}
}

// Name returns the provider name.
func (g *MockGenerator) Name() string {
	return "mock"
}

// Generate returns the next scripted response or error.
func (g *MockGenerator) Generate(ctx context.Context, req capability.GenerationRequest) (*capability.GenerationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.calls = append(g.calls, MockCall{Request: req})

	if len(g.responses) == 0 {
		return nil, capability.NewGenerationError("no responses configured", nil)
	}

	i := g.index
	if i >= len(g.responses) {
		i = len(g.responses) - 1
	}
	g.index++

	if g.errs[i] != nil {
		return nil, g.errs[i]
	}

	text := g.responses[i]
	return &capability.GenerationResult{
		Text: text,
		Usage: capability.TokenUsage{
			InputTokens:  len(req.Prompt) / 4,
			OutputTokens: len(text) / 4,
		},
	}, nil
}

// Calls returns a copy of all recorded calls.
func (g *MockGenerator) Calls() []MockCall {
	g.mu.Lock()
	defer g.mu.Unlock()

	calls := make([]MockCall, len(g.calls))
	copy(calls, g.calls)
	return calls
}

// CallCount returns the number of Generate calls made so far.
func (g *MockGenerator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
