// Package coordination drives the song-generation workflow: a directed
// graph of stage agents with conditional instrumental routing, a bounded
// reviewer revise loop, a bounded QA restart loop with keyword-routed
// targets, and a user-approval gate that suspends the run between the QA
// verdict and the caller's decision.
package coordination

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/harmoniq-labs/songgen-agents-go/agents/arranger"
	"github.com/harmoniq-labs/songgen-agents-go/agents/composer"
	"github.com/harmoniq-labs/songgen-agents-go/agents/designer"
	"github.com/harmoniq-labs/songgen-agents-go/agents/effects"
	"github.com/harmoniq-labs/songgen-agents-go/agents/instrumentalist"
	"github.com/harmoniq-labs/songgen-agents-go/agents/lyricist"
	"github.com/harmoniq-labs/songgen-agents-go/agents/qa"
	"github.com/harmoniq-labs/songgen-agents-go/agents/reviewer"
	"github.com/harmoniq-labs/songgen-agents-go/agents/vocalist"
	"github.com/harmoniq-labs/songgen-agents-go/config"
	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/metrics"
	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/prompt"
)

// maxGraphSteps bounds graph execution independently of the restart
// counters, so even a pathological feedback loop terminates.
const maxGraphSteps = 60

// Stage is the uniform agent contract the graph executes.
type Stage interface {
	Name() string
	Run(ctx context.Context, state models.SongState, catalog *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error)
}

// UserApprovalData is what the caller needs to render an accept/improve
// choice.
type UserApprovalData struct {
	QAFeedback    []string `json:"qaFeedback"`
	RestartsUsed  int      `json:"restartsUsed"`
	RestartBudget int      `json:"restartBudget"`
}

// GenerationResult is the structured outcome of a generation run: success
// with a document, a pending user decision, or a hard failure.
type GenerationResult struct {
	Success bool `json:"success"`

	SongDocument  *models.SongDocument `json:"songDocument,omitempty"`
	AlbumArt      models.AlbumArt      `json:"albumArt,omitempty"`
	ReviewNotes   []string             `json:"reviewNotes,omitempty"`
	QACorrections []string             `json:"qaCorrections,omitempty"`
	QAFeedback    []string             `json:"qaFeedback,omitempty"`

	UserApprovalRequired bool              `json:"userApprovalRequired,omitempty"`
	UserApprovalData     *UserApprovalData `json:"userApprovalData,omitempty"`
	SessionID            string            `json:"sessionId,omitempty"`

	Error          string   `json:"error,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	Timeout        bool     `json:"timeout,omitempty"`
	RecursionError bool     `json:"recursionError,omitempty"`
}

// User decisions accepted by SubmitUserDecision.
const (
	DecisionAccept  = "accept"
	DecisionImprove = "improve"
)

// Controller executes generation requests. It is safe for concurrent use:
// each run owns its SongState exclusively, the catalog and provider
// registry are shared read-only.
type Controller struct {
	cfg      *config.Config
	registry *llm.Registry
	catalog  *models.ResourceCatalog
	sessions *SessionStore
	metrics  *metrics.SentryMetrics
	stages   map[string]Stage
}

// NewController wires the stage agents over the given provider registry and
// catalog snapshot.
func NewController(cfg *config.Config, registry *llm.Registry, cat *models.ResourceCatalog) *Controller {
	c := &Controller{
		cfg:      cfg,
		registry: registry,
		catalog:  cat,
		sessions: NewSessionStore(),
		metrics:  metrics.NewSentryMetrics(),
	}

	// The designer's concept prompt runs on the image provider's own
	// completion backend, never the request-selected pipeline oracle.
	var images llm.ImageGenerator
	var concept llm.Oracle
	if backend, err := registry.ImageBackend(context.Background()); err == nil {
		images = backend
		concept = llm.NewCompletionClient(backend, llm.DefaultOpenAIModel,
			llm.WithCallTimeout(cfg.CallTimeout),
			llm.WithSystemPrompt(prompt.NewBuilder().System()))
	} else {
		log.Printf("⚠️  No image provider available, album covers fall back to a placeholder concept: %v", err)
	}

	c.stages = map[string]Stage{
		StageComposer:        composer.New(),
		StageArranger:        arranger.New(),
		StageLyricist:        lyricist.New(),
		StageVocalist:        vocalist.New(),
		StageInstrumentalist: instrumentalist.New(),
		StageEffects:         effects.New(),
		StageReviewer:        reviewer.New(),
		StageDesigner:        designer.New(concept, images),
		StageQA:              qa.New(),
	}
	return c
}

// GenerateSong runs the full workflow for one request. It always returns a
// structured result; only timeout, step-limit exhaustion and missing
// providers produce a failure shape.
func (c *Controller) GenerateSong(ctx context.Context, req models.GenerationRequest, progress ProgressFunc) *GenerationResult {
	if !c.registry.Available() {
		return &GenerationResult{
			Success: false,
			Error:   "no LLM provider configured: set OPENAI_API_KEY or GEMINI_API_KEY",
		}
	}

	oracle, err := c.buildOracle(ctx, &req)
	if err != nil {
		return &GenerationResult{
			Success: false,
			Error:   fmt.Sprintf("provider unavailable: %v (check the configured API keys)", err),
		}
	}

	state := models.NewSongState(req)
	state.MaxRevisions = c.cfg.MaxRevisions
	state.MaxQARestarts = c.cfg.MaxQARestarts

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.WorkflowTimeout)
	defer cancel()

	log.Printf("🚀 Workflow started: %q (instrumental=%t)", req.SongIdea, req.IsInstrumental)
	return c.run(runCtx, state, StageComposer, oracle, progress)
}

// SubmitUserDecision resumes a workflow suspended at the user-approval
// gate. The boolean reports whether the session existed and had not been
// decided yet; duplicate submissions return (nil, false). "accept"
// completes with the draft document; "improve" routes the QA feedback to
// one target stage and re-runs from there.
func (c *Controller) SubmitUserDecision(ctx context.Context, sessionID, decision string) (*GenerationResult, bool) {
	state, ok := c.sessions.Take(sessionID)
	if !ok {
		log.Printf("⚠️  Unknown or already-decided session %s", sessionID)
		return nil, false
	}

	if decision == DecisionAccept {
		log.Printf("👍 User accepted draft for session %s", sessionID)
		return successResult(&state), true
	}

	target := ClassifyFeedback(state.QAFeedback, state.Request.IsInstrumental)
	state.QARestartCount++
	c.metrics.RecordRestart("user_improve", target, state.QARestartCount)
	log.Printf("🔁 User requested improvement, restarting at %s (restart %d/%d)",
		target, state.QARestartCount, state.MaxQARestarts)

	oracle, err := c.buildOracle(ctx, &state.Request)
	if err != nil {
		return &GenerationResult{
			Success: false,
			Error:   fmt.Sprintf("provider unavailable on resume: %v", err),
			Errors:  state.Errors,
		}, true
	}

	runCtx, cancel := context.WithTimeout(ctx, c.cfg.WorkflowTimeout)
	defer cancel()
	return c.run(runCtx, state, target, oracle, nil), true
}

// buildOracle resolves the request's provider and model into a retrying
// completion client with an alternate-provider fallback.
func (c *Controller) buildOracle(ctx context.Context, req *models.GenerationRequest) (llm.Oracle, error) {
	provider, err := c.registry.Get(ctx, req.Provider, req.Model)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = llm.DefaultOpenAIModel
		if provider.Name() == llm.ProviderGemini {
			model = llm.DefaultGeminiModel
		}
	}

	opts := []llm.CompletionOption{
		llm.WithCallTimeout(c.cfg.CallTimeout),
		llm.WithSystemPrompt(prompt.NewBuilder().System()),
	}
	if alternate := c.registry.Alternate(ctx, provider.Name()); alternate != nil {
		opts = append(opts, llm.WithAlternate(alternate))
	}
	return llm.NewCompletionClient(provider, model, opts...), nil
}

// run executes the graph from the given stage until a terminal state, the
// step limit, or the context deadline.
func (c *Controller) run(ctx context.Context, state models.SongState, start string, oracle llm.Oracle, progress ProgressFunc) *GenerationResult {
	current := start
	for steps := 1; ; steps++ {
		if steps > maxGraphSteps {
			log.Printf("🛑 Step limit reached at stage %s", current)
			return &GenerationResult{
				Success:        false,
				Error:          "workflow exceeded its step limit; try a simpler request or a shorter duration",
				Errors:         state.Errors,
				RecursionError: true,
			}
		}
		if ctx.Err() != nil {
			return timeoutResult(&state)
		}

		stage, ok := c.stages[current]
		if !ok {
			return &GenerationResult{
				Success: false,
				Error:   fmt.Sprintf("workflow routed to unknown stage %q", current),
				Errors:  state.Errors,
			}
		}

		state = state.AtAgent(current)
		report(progress, current, &state)

		started := time.Now()
		next, err := stage.Run(ctx, state, c.catalog, oracle)
		c.metrics.RecordStageDuration(ctx, current, time.Since(started), err == nil)
		if err != nil {
			// Stages convert their own failures to fallbacks; an error here
			// is unexpected but still must not abort the run.
			log.Printf("⚠️  Stage %s returned an error, continuing: %v", current, err)
			next = next.WithError(fmt.Sprintf("%s: %v", current, err))
		}
		state = next

		if ctx.Err() != nil {
			return timeoutResult(&state)
		}

		current = c.nextStage(current, &state)
		switch current {
		case StageComplete:
			log.Printf("🏁 Workflow complete: %q", state.Request.SongIdea)
			return successResult(&state)
		case StageUserApproval:
			sessionID := c.sessions.Suspend(state)
			log.Printf("⏸️  Awaiting user decision (session %s, restart %d/%d)",
				sessionID, state.QARestartCount, state.MaxQARestarts)
			return &GenerationResult{
				Success:              false,
				UserApprovalRequired: true,
				SessionID:            sessionID,
				SongDocument:         state.FinalSongDocument,
				QAFeedback:           state.QAFeedback,
				UserApprovalData: &UserApprovalData{
					QAFeedback:    state.QAFeedback,
					RestartsUsed:  state.QARestartCount,
					RestartBudget: state.MaxQARestarts,
				},
			}
		}
	}
}

// nextStage implements the graph edges, including both conditional
// instrumental branches and the two bounded feedback loops.
func (c *Controller) nextStage(current string, state *models.SongState) string {
	switch current {
	case StageComposer:
		return StageArranger

	case StageArranger:
		if state.Request.IsInstrumental {
			return StageInstrumentalist
		}
		return StageLyricist

	case StageLyricist:
		// Duplicate of the arranger-level branch: a routing bug upstream
		// must still never push an instrumental run into the vocalist.
		if state.Request.IsInstrumental {
			return StageInstrumentalist
		}
		return StageVocalist

	case StageVocalist:
		return StageInstrumentalist

	case StageInstrumentalist:
		return StageEffects

	case StageEffects:
		return StageReviewer

	case StageReviewer:
		if state.Recommendation == reviewer.RecommendRevise && state.RevisionCount < state.MaxRevisions {
			state.RevisionCount++
			c.metrics.RecordRestart("reviewer_revise", StageComposer, state.RevisionCount)
			log.Printf("🔁 Reviewer requested revision %d/%d, restarting at composer",
				state.RevisionCount, state.MaxRevisions)
			return StageComposer
		}
		return StageDesigner

	case StageDesigner:
		return StageQA

	case StageQA:
		if len(state.QAFeedback) == 0 {
			return StageComplete
		}
		if state.QARestartCount >= state.MaxQARestarts {
			log.Printf("🛑 QA feedback remains but restart budget exhausted (%d/%d), forcing completion",
				state.QARestartCount, state.MaxQARestarts)
			return StageComplete
		}
		return StageUserApproval

	default:
		return StageComplete
	}
}

func report(progress ProgressFunc, stage string, state *models.SongState) {
	if progress == nil {
		return
	}
	progress(stageMessages[stage], progressPercent(stage, state.QARestartCount), stage)
}

func successResult(state *models.SongState) *GenerationResult {
	return &GenerationResult{
		Success:       true,
		SongDocument:  state.FinalSongDocument,
		AlbumArt:      state.AlbumArt,
		ReviewNotes:   state.ReviewNotes,
		QACorrections: state.QACorrections,
		QAFeedback:    state.QAFeedback,
		Errors:        state.Errors,
	}
}

func timeoutResult(state *models.SongState) *GenerationResult {
	log.Printf("⏰ Workflow timed out at stage %s", state.CurrentAgent)
	return &GenerationResult{
		Success: false,
		Error:   "workflow timed out; try a shorter duration, a simpler idea, or a different provider",
		Errors:  state.Errors,
		Timeout: true,
	}
}
