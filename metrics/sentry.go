package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryMetrics records custom pipeline metrics to Sentry.
type SentryMetrics struct {
	enabled bool
}

// NewSentryMetrics creates a new Sentry metrics client.
func NewSentryMetrics() *SentryMetrics {
	return &SentryMetrics{
		enabled: true, // Always enabled if Sentry is configured
	}
}

// RecordTokenUsage records provider token usage for one completion call.
func (m *SentryMetrics) RecordTokenUsage(ctx context.Context, provider, model string, input, output, total int64) {
	if !m.enabled {
		return
	}

	if transaction := sentry.TransactionFromContext(ctx); transaction != nil {
		transaction.SetTag("llm.provider", provider)
		transaction.SetTag("llm.model", model)
		transaction.SetData("llm.input_tokens", input)
		transaction.SetData("llm.output_tokens", output)
		transaction.SetData("llm.total_tokens", total)
	}

	span := sentry.StartSpan(ctx, "llm.token_usage")
	defer span.Finish()
	span.SetTag("provider", provider)
	span.SetTag("model", model)
	span.SetData("input_tokens", input)
	span.SetData("output_tokens", output)
	span.SetData("total_tokens", total)
	span.Status = sentry.SpanStatusOK
	span.Description = fmt.Sprintf("Token Usage: %s/%s", provider, model)
}

// RecordStageDuration records the wall-clock time of one pipeline stage.
func (m *SentryMetrics) RecordStageDuration(ctx context.Context, stage string, duration time.Duration, success bool) {
	if !m.enabled {
		return
	}

	span := sentry.StartSpan(ctx, "pipeline.stage")
	defer span.Finish()
	span.SetTag("stage", stage)
	span.SetTag("success", fmt.Sprintf("%t", success))
	span.SetData("duration_ms", duration.Milliseconds())
	if success {
		span.Status = sentry.SpanStatusOK
	} else {
		span.Status = sentry.SpanStatusInternalError
	}
	span.Description = fmt.Sprintf("Stage: %s", stage)
}

// RecordRestart records a review- or QA-triggered restart as a breadcrumb
// so restart loops are visible on the run's event trail.
func (m *SentryMetrics) RecordRestart(reason, targetStage string, restartCount int) {
	if !m.enabled {
		return
	}

	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: "pipeline",
		Message:  fmt.Sprintf("Restart to %s (%s)", targetStage, reason),
		Level:    sentry.LevelInfo,
		Data: map[string]interface{}{
			"target_stage":  targetStage,
			"reason":        reason,
			"restart_count": restartCount,
		},
	})
}
