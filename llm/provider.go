package llm

import "context"

// Provider name constants.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Default models per provider.
const (
	DefaultOpenAIModel = "gpt-4.1-mini"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// GenerationRequest is the provider-agnostic completion request. Providers
// build their own message envelope from it: OpenAI carries SystemPrompt as
// instructions, Gemini folds it into the user turn because its API has no
// separate system role in this configuration.
type GenerationRequest struct {
	Model        string
	SystemPrompt string
	Prompt       string
}

// Usage carries token accounting when the provider reports it.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
	TotalTokens  int64
}

// GenerationResponse is the provider-agnostic completion result.
type GenerationResponse struct {
	Text  string
	Usage Usage
}

// Provider is one interchangeable text-completion backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error)
}

// ImageGenerator is implemented by providers that can render album art.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Oracle is the uniform completion interface consumed by the stage agents.
type Oracle interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
