package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoProvider is returned when no backend has credentials configured.
// It is fatal at workflow-build time, before any stage runs.
var ErrNoProvider = errors.New("no LLM provider available: set OPENAI_API_KEY or GEMINI_API_KEY")

// ErrorKind classifies a provider failure for retry decisions and for the
// actionable message surfaced to the caller.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindOverload
	KindRateLimit
	KindTimeout
	KindAuth
	KindBadRequest
)

func (k ErrorKind) String() string {
	switch k {
	case KindOverload:
		return "overload"
	case KindRateLimit:
		return "rate_limit"
	case KindTimeout:
		return "timeout"
	case KindAuth:
		return "auth"
	case KindBadRequest:
		return "bad_request"
	default:
		return "unknown"
	}
}

// Transient reports whether the kind should be retried with backoff.
func (k ErrorKind) Transient() bool {
	switch k {
	case KindOverload, KindRateLimit, KindTimeout:
		return true
	default:
		return false
	}
}

// CompletionError is raised by the oracle after exhausting retries. It
// preserves the last underlying provider error and its classification.
type CompletionError struct {
	Provider string
	Kind     ErrorKind
	Attempts int
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("completion failed (%s, %s) after %d attempts: %v",
		e.Provider, e.Kind, e.Attempts, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Advice returns provider-specific guidance for the failure.
func (e *CompletionError) Advice() string {
	switch e.Kind {
	case KindOverload:
		return "the provider is overloaded; try again shortly or switch to a different provider"
	case KindRateLimit:
		return "rate limit reached; wait a moment before retrying"
	case KindTimeout:
		return "the provider timed out; try a shorter request or a faster model"
	case KindAuth:
		return "authentication failed; check the configured API key"
	default:
		return "the provider request failed; try again or switch providers"
	}
}

// Classify maps a raw provider error onto the retry taxonomy. Provider SDK
// errors carry status codes as text, so string matching covers both vendors.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "529") || strings.Contains(msg, "overloaded"):
		return KindOverload
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit"):
		return KindRateLimit
	case strings.Contains(msg, "503") || strings.Contains(msg, "502") || strings.Contains(msg, "unavailable"):
		return KindOverload
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline") || strings.Contains(msg, "connection reset"):
		return KindTimeout
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized"):
		return KindAuth
	case strings.Contains(msg, "400") || strings.Contains(msg, "invalid request") || strings.Contains(msg, "invalid_request"):
		return KindBadRequest
	default:
		return KindUnknown
	}
}
