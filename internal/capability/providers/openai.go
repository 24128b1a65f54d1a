package providers

import (
	"context"
	"os"

	"github.com/loom-ai/loom/internal/capability"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ProviderConfig carries construction parameters for a generator provider.
type ProviderConfig struct {
	APIKey       string
	DefaultModel string
	BaseURL      string
}

// OpenAIGenerator implements capability.Generator over OpenAI-compatible
// endpoints via langchaingo.
type OpenAIGenerator struct {
	client *openai.LLM
	config ProviderConfig
}

// NewOpenAIGenerator creates a new OpenAI-backed generator.
// The API key falls back to the OPENAI_API_KEY environment variable.
func NewOpenAIGenerator(cfg ProviderConfig) (*OpenAIGenerator, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}

	if apiKey == "" {
		return nil, capability.NewAuthError("openai", nil)
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
	}

	if cfg.DefaultModel != "" {
		opts = append(opts, openai.WithModel(cfg.DefaultModel))
	}

	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, capability.TranslateError("openai", err)
	}

	return &OpenAIGenerator{
		client: client,
		config: cfg,
	}, nil
}

// Name returns the provider name.
func (g *OpenAIGenerator) Name() string {
	return "openai"
}

// Generate sends a generation request and returns the generated text with
// usage metadata. SDK errors are translated into the Loom error taxonomy
// so the step executor can classify them as transient or permanent.
func (g *OpenAIGenerator) Generate(ctx context.Context, req capability.GenerationRequest) (*capability.GenerationResult, error) {
	if err := req.Validate(); err != nil {
		return nil, capability.NewInvalidRequestError(err.Error())
	}

	messages := toRequestMessages(req)
	callOpts := buildCallOptions(req)

	resp, err := g.client.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, capability.TranslateError("openai", err)
	}

	return fromContentResponse(resp), nil
}

// toRequestMessages converts a generation request to langchaingo messages.
func toRequestMessages(req capability.GenerationRequest) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, 2)

	if req.SystemInstruction != "" {
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(req.SystemInstruction)},
		})
	}

	messages = append(messages, llms.MessageContent{
		Role:  llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{llms.TextPart(req.Prompt)},
	})

	return messages
}

// buildCallOptions converts generation config to langchaingo call options.
func buildCallOptions(req capability.GenerationRequest) []llms.CallOption {
	callOpts := make([]llms.CallOption, 0)

	if req.Config.Temperature > 0 {
		callOpts = append(callOpts, llms.WithTemperature(req.Config.Temperature))
	}

	if req.Config.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(req.Config.MaxTokens))
	}

	return callOpts
}

// fromContentResponse converts a langchaingo response to a GenerationResult.
func fromContentResponse(resp *llms.ContentResponse) *capability.GenerationResult {
	if resp == nil || len(resp.Choices) == 0 {
		return &capability.GenerationResult{}
	}

	choice := resp.Choices[0]
	result := &capability.GenerationResult{
		Text: choice.Content,
	}

	if choice.GenerationInfo != nil {
		if v, ok := choice.GenerationInfo["PromptTokens"].(int); ok {
			result.Usage.InputTokens = v
		}
		if v, ok := choice.GenerationInfo["CompletionTokens"].(int); ok {
			result.Usage.OutputTokens = v
		}
	}

	return result
}
