package llm

import (
	"context"
	"log"
	"math/rand/v2"
	"time"

	"github.com/harmoniq-labs/songgen-agents-go/metrics"
)

const (
	defaultMaxAttempts = 3
	defaultCallTimeout = 2 * time.Minute
)

// CompletionClient is the concrete Oracle used by the pipeline. It wraps a
// provider with per-call timeouts, retry with exponential backoff and
// jitter on transient failures, and a same-conversation switch to an
// alternate provider when the primary stays overloaded.
type CompletionClient struct {
	provider     Provider
	alternate    Provider
	model        string
	systemPrompt string
	maxAttempts  int
	callTimeout  time.Duration
	metrics      *metrics.SentryMetrics

	// sleep is swapped out in tests to avoid real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// CompletionOption customizes a CompletionClient.
type CompletionOption func(*CompletionClient)

// WithAlternate sets the fallback provider used after an overload.
func WithAlternate(p Provider) CompletionOption {
	return func(c *CompletionClient) { c.alternate = p }
}

// WithSystemPrompt sets the system prompt sent with every completion.
func WithSystemPrompt(s string) CompletionOption {
	return func(c *CompletionClient) { c.systemPrompt = s }
}

// WithMaxAttempts overrides the retry budget.
func WithMaxAttempts(n int) CompletionOption {
	return func(c *CompletionClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithCallTimeout overrides the per-call timeout.
func WithCallTimeout(d time.Duration) CompletionOption {
	return func(c *CompletionClient) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// NewCompletionClient creates an oracle bound to a provider and model.
func NewCompletionClient(provider Provider, model string, opts ...CompletionOption) *CompletionClient {
	c := &CompletionClient{
		provider:    provider,
		model:       model,
		maxAttempts: defaultMaxAttempts,
		callTimeout: defaultCallTimeout,
		metrics:     metrics.NewSentryMetrics(),
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete runs the prompt through the provider and returns the raw
// completion text. Transient failures are retried with exponential backoff;
// non-transient failures (auth, malformed request) fail immediately. On
// exhaustion a *CompletionError preserving the last underlying error is
// returned.
func (c *CompletionClient) Complete(ctx context.Context, prompt string) (string, error) {
	provider := c.provider
	var lastErr error
	var lastKind ErrorKind

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := jitteredBackoff(attempt - 1)
			log.Printf("⏳ Retry %d/%d against %s in %v", attempt, c.maxAttempts, provider.Name(), backoff)
			if err := c.sleep(ctx, backoff); err != nil {
				return "", &CompletionError{Provider: provider.Name(), Kind: KindTimeout, Attempts: attempt - 1, Err: err}
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
		resp, err := provider.Generate(callCtx, &GenerationRequest{Model: c.model, SystemPrompt: c.systemPrompt, Prompt: prompt})
		cancel()

		if err == nil {
			c.metrics.RecordTokenUsage(ctx, provider.Name(), c.model,
				resp.Usage.InputTokens, resp.Usage.OutputTokens, resp.Usage.TotalTokens)
			return resp.Text, nil
		}

		lastErr = err
		lastKind = Classify(err)

		if !lastKind.Transient() {
			log.Printf("❌ Non-transient %s error from %s, not retrying: %v", lastKind, provider.Name(), err)
			return "", &CompletionError{Provider: provider.Name(), Kind: lastKind, Attempts: attempt, Err: err}
		}

		// Persistent overload: hand the remaining attempts to the alternate
		// provider within the same conversation.
		if lastKind == KindOverload && c.alternate != nil && provider != c.alternate {
			log.Printf("🔁 %s overloaded, switching to %s for remaining attempts", provider.Name(), c.alternate.Name())
			provider = c.alternate
		}
	}

	return "", &CompletionError{
		Provider: provider.Name(),
		Kind:     lastKind,
		Attempts: c.maxAttempts,
		Err:      lastErr,
	}
}

// jitteredBackoff returns 2^attempt seconds scaled by a random factor in
// [0.5, 1.5). The pre-jitter delays are strictly increasing per attempt.
func jitteredBackoff(attempt int) time.Duration {
	base := float64(int64(1)<<uint(attempt)) * float64(time.Second)
	jitter := 0.5 + rand.Float64() //nolint:gosec // non-cryptographic jitter is intentional
	return time.Duration(base * jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
