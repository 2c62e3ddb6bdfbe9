package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"google.golang.org/genai"
)

// GeminiProvider implements Provider using Google's Gemini API.
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider creates a new Gemini provider.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string { return ProviderGemini }

// Generate implements non-streaming generation using the Gemini API. The
// system prompt is folded into the user turn; this API configuration does
// not accept a separate system role.
func (p *GeminiProvider) Generate(ctx context.Context, request *GenerationRequest) (*GenerationResponse, error) {
	startTime := time.Now()
	model := request.Model
	if model == "" || !strings.HasPrefix(strings.ToLower(model), "gemini-") {
		model = DefaultGeminiModel
	}
	log.Printf("🎵 GEMINI GENERATION REQUEST STARTED (Model: %s)", model)

	transaction := sentry.StartTransaction(ctx, "gemini.generate")
	defer transaction.Finish()
	transaction.SetTag("model", model)
	transaction.SetTag("provider", ProviderGemini)

	prompt := request.Prompt
	if request.SystemPrompt != "" {
		prompt = request.SystemPrompt + "\n\n" + request.Prompt
	}

	span := transaction.StartChild("gemini.api_call")
	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	span.Finish()

	if err != nil {
		log.Printf("❌ GEMINI REQUEST FAILED after %v: %v", time.Since(startTime), err)
		transaction.SetTag("success", "false")
		sentry.CaptureException(err)
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}

	textOutput := strings.TrimSpace(resp.Text())
	if textOutput == "" {
		transaction.SetTag("success", "false")
		return nil, fmt.Errorf("gemini response did not include any output text")
	}

	result := &GenerationResponse{Text: textOutput}
	if resp.UsageMetadata != nil {
		result.Usage = Usage{
			InputTokens:  int64(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int64(resp.UsageMetadata.TotalTokenCount),
		}
	}

	log.Printf("✅ GEMINI GENERATION COMPLETED in %v (output=%d chars)", time.Since(startTime), len(textOutput))
	transaction.SetTag("success", "true")
	return result, nil
}
