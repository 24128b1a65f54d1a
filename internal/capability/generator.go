package capability

import (
	"context"
	"fmt"
)

// Generator defines the interface for the generative model boundary.
// It turns a prompt into text plus usage metadata. Implementations must
// report transient failures (rate limit, network) as retryable errors and
// permanent failures (auth, content policy) as non-retryable ones so the
// step executor can decide whether a retry is worthwhile.
type Generator interface {
	// Name returns the provider name (e.g. "openai", "mock")
	Name() string

	// Generate sends a generation request and blocks until the full
	// response is available. Every call is a suspension point.
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// GenerationConfig carries the model parameters for one generation call.
type GenerationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
	ReasoningEffort string  `json:"reasoning_effort,omitempty"`
}

// GenerationRequest represents a request to generate one artifact.
type GenerationRequest struct {
	Prompt            string           `json:"prompt"`
	SystemInstruction string           `json:"system_instruction,omitempty"`
	Config            GenerationConfig `json:"config"`
}

// Validate checks if the generation request is well-formed.
func (r GenerationRequest) Validate() error {
	if r.Prompt == "" {
		return fmt.Errorf("prompt is required")
	}
	if r.Config.Temperature < 0 || r.Config.Temperature > 1 {
		return fmt.Errorf("temperature must be between 0 and 1, got %f", r.Config.Temperature)
	}
	if r.Config.MaxTokens < 0 {
		return fmt.Errorf("max_tokens must be non-negative, got %d", r.Config.MaxTokens)
	}
	return nil
}

// TokenUsage contains token consumption statistics for one generation call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Total returns the combined input and output token count.
func (u TokenUsage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Add returns the element-wise sum of two usage records.
func (u TokenUsage) Add(other TokenUsage) TokenUsage {
	return TokenUsage{
		InputTokens:  u.InputTokens + other.InputTokens,
		OutputTokens: u.OutputTokens + other.OutputTokens,
	}
}

// GenerationResult represents the response from a generation request.
type GenerationResult struct {
	// Text is the generated artifact text
	Text string `json:"text"`

	// Usage contains token usage statistics for this call
	Usage TokenUsage `json:"usage"`

	// ContinuationToken is set when the provider truncated the output and
	// supports resuming generation. Empty when the output is complete.
	ContinuationToken string `json:"continuation_token,omitempty"`
}
