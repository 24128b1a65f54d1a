package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/loom-ai/loom/internal/capability"
)

// funcGenerator adapts a function into a capability.Generator.
type funcGenerator struct {
	name string
	fn   func(ctx context.Context, req capability.GenerationRequest) (*capability.GenerationResult, error)
}

func (g *funcGenerator) Name() string { return g.name }

func (g *funcGenerator) Generate(ctx context.Context, req capability.GenerationRequest) (*capability.GenerationResult, error) {
	return g.fn(ctx, req)
}

// delayGenerator returns a fixed text after sleeping, for exercising
// completion-order independence in parallel groups.
func delayGenerator(text string, delay time.Duration) capability.Generator {
	return &funcGenerator{
		name: "delay",
		fn: func(ctx context.Context, req capability.GenerationRequest) (*capability.GenerationResult, error) {
			time.Sleep(delay)
			return &capability.GenerationResult{Text: text}, nil
		},
	}
}

// panicGenerator panics on every call.
func panicGenerator(message string) capability.Generator {
	return &funcGenerator{
		name: "panic",
		fn: func(ctx context.Context, req capability.GenerationRequest) (*capability.GenerationResult, error) {
			panic(message)
		},
	}
}

// stubValidator returns scripted reports in order; the last one repeats
// once the script runs out. A nil error slice means no call errors.
type stubValidator struct {
	mu      sync.Mutex
	reports []*capability.ValidationReport
	errs    []error
	calls   int
}

func (v *stubValidator) Validate(ctx context.Context, artifact string, kind capability.ArtifactKind) (*capability.ValidationReport, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	i := v.calls
	v.calls++

	if i < len(v.errs) && v.errs[i] != nil {
		return nil, v.errs[i]
	}
	if len(v.reports) == 0 {
		return &capability.ValidationReport{Valid: true}, nil
	}
	if i >= len(v.reports) {
		i = len(v.reports) - 1
	}
	return v.reports[i], nil
}

// rejectNTimes builds a validator that fails the first n calls with one
// issue each and passes afterwards.
func rejectNTimes(n int, message string) *stubValidator {
	reports := make([]*capability.ValidationReport, 0, n+1)
	for i := 0; i < n; i++ {
		reports = append(reports, &capability.ValidationReport{
			Valid:  false,
			Issues: []capability.Issue{{Severity: capability.SeverityError, Message: message}},
		})
	}
	reports = append(reports, &capability.ValidationReport{Valid: true})
	return &stubValidator{reports: reports}
}

// funcValidator adapts a function into a capability.Validator.
type funcValidator struct {
	fn func(artifact string, kind capability.ArtifactKind) (*capability.ValidationReport, error)
}

func (v *funcValidator) Validate(ctx context.Context, artifact string, kind capability.ArtifactKind) (*capability.ValidationReport, error) {
	return v.fn(artifact, kind)
}

// stubCritic returns scripted overall scores in order; the last outcome
// repeats once the script runs out.
type stubCritic struct {
	mu           sync.Mutex
	scores       []float64
	details      []capability.QualityScore // optional full details, aligned with scores
	improvements []string
	errs         []error
	calls        int
}

func (c *stubCritic) Evaluate(ctx context.Context, artifacts map[capability.ArtifactKind]string) (*capability.Critique, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.calls
	c.calls++

	if i < len(c.errs) && c.errs[i] != nil {
		return nil, c.errs[i]
	}
	if i >= len(c.scores) {
		i = len(c.scores) - 1
	}
	score := capability.QualityScore{Overall: c.scores[i]}
	if i < len(c.details) {
		score = c.details[i]
	}
	return &capability.Critique{
		Score:        score,
		Improvements: c.improvements,
	}, nil
}
