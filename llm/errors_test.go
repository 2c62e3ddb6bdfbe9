package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("call failed: %w", context.DeadlineExceeded), KindTimeout},
		{"overloaded 529", errors.New("API returned 529: overloaded_error"), KindOverload},
		{"service unavailable", errors.New("503 Service Unavailable"), KindOverload},
		{"rate limit", errors.New("429 Too Many Requests: rate limit exceeded"), KindRateLimit},
		{"timeout text", errors.New("request timeout after 120s"), KindTimeout},
		{"auth", errors.New("401 Unauthorized: invalid api key"), KindAuth},
		{"bad request", errors.New("400 invalid_request_error"), KindBadRequest},
		{"mystery", errors.New("something odd"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestTransient(t *testing.T) {
	assert.True(t, KindOverload.Transient())
	assert.True(t, KindRateLimit.Transient())
	assert.True(t, KindTimeout.Transient())
	assert.False(t, KindAuth.Transient())
	assert.False(t, KindBadRequest.Transient())
	assert.False(t, KindUnknown.Transient())
}

func TestCompletionErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &CompletionError{Provider: "openai", Kind: KindOverload, Attempts: 3, Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "overload")
	assert.NotEmpty(t, err.Advice())
}
