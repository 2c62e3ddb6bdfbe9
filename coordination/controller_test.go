package coordination

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmoniq-labs/songgen-agents-go/agents/arranger"
	"github.com/harmoniq-labs/songgen-agents-go/agents/composer"
	"github.com/harmoniq-labs/songgen-agents-go/agents/designer"
	"github.com/harmoniq-labs/songgen-agents-go/agents/effects"
	"github.com/harmoniq-labs/songgen-agents-go/agents/instrumentalist"
	"github.com/harmoniq-labs/songgen-agents-go/agents/lyricist"
	"github.com/harmoniq-labs/songgen-agents-go/agents/qa"
	"github.com/harmoniq-labs/songgen-agents-go/agents/reviewer"
	"github.com/harmoniq-labs/songgen-agents-go/agents/vocalist"
	"github.com/harmoniq-labs/songgen-agents-go/catalog"
	"github.com/harmoniq-labs/songgen-agents-go/config"
	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/metrics"
	"github.com/harmoniq-labs/songgen-agents-go/models"
)

type stubOracle struct {
	fn    func(prompt string) (string, error)
	calls int
}

func (s *stubOracle) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.fn(prompt)
}

func malformedOracle() *stubOracle {
	return &stubOracle{fn: func(string) (string, error) {
		return "I'm sorry, I can't produce JSON today {{{", nil
	}}
}

// recordingStage wraps a stage and records each visit.
type recordingStage struct {
	inner   Stage
	visited *[]string
}

func (r recordingStage) Name() string { return r.inner.Name() }

func (r recordingStage) Run(ctx context.Context, state models.SongState, cat *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error) {
	*r.visited = append(*r.visited, r.inner.Name())
	return r.inner.Run(ctx, state, cat, oracle)
}

func newTestController(visited *[]string) *Controller {
	cfg := &config.Config{
		MaxRevisions:    1,
		MaxQARestarts:   2,
		CallTimeout:     time.Minute,
		WorkflowTimeout: time.Minute,
	}
	c := &Controller{
		cfg:      cfg,
		catalog:  catalog.NewLoader(nil, nil).Load(),
		sessions: NewSessionStore(),
		metrics:  metrics.NewSentryMetrics(),
	}
	c.stages = map[string]Stage{
		StageComposer:        composer.New(),
		StageArranger:        arranger.New(),
		StageLyricist:        lyricist.New(),
		StageVocalist:        vocalist.New(),
		StageInstrumentalist: instrumentalist.New(),
		StageEffects:         effects.New(),
		StageReviewer:        reviewer.New(),
		StageDesigner:        designer.New(nil, nil),
		StageQA:              qa.New(),
	}
	if visited != nil {
		for name, stage := range c.stages {
			c.stages[name] = recordingStage{inner: stage, visited: visited}
		}
	}
	return c
}

func newState(c *Controller, req models.GenerationRequest) models.SongState {
	state := models.NewSongState(req)
	state.MaxRevisions = c.cfg.MaxRevisions
	state.MaxQARestarts = c.cfg.MaxQARestarts
	return state
}

func TestRunMalformedOracleStillSucceeds(t *testing.T) {
	c := newTestController(nil)
	req := models.GenerationRequest{
		SongIdea:  "a rainy city night",
		Duration:  models.DurationShort,
		StyleTags: []string{"jazz"},
	}

	var percents []int
	progress := func(message string, percent int, stageID string) {
		percents = append(percents, percent)
	}

	result := c.run(context.Background(), newState(c, req), StageComposer, malformedOracle(), progress)
	require.True(t, result.Success, "fallbacks at every stage still produce a song: %s", result.Error)
	require.NotNil(t, result.SongDocument)

	doc := result.SongDocument
	assert.GreaterOrEqual(t, doc.Tempo, 60)
	assert.LessOrEqual(t, doc.Tempo, 200)

	vocal, instrumental := 0, 0
	for i := range doc.Tracks {
		if doc.Tracks[i].IsVocal() {
			vocal++
		} else {
			instrumental++
		}
	}
	assert.GreaterOrEqual(t, vocal, 1)
	assert.GreaterOrEqual(t, instrumental, 1)

	// Progress is monotonic within a single attempt.
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}
}

func TestRunInstrumentalSkipsVocalStages(t *testing.T) {
	var visited []string
	c := newTestController(&visited)
	req := models.GenerationRequest{SongIdea: "desert drive", IsInstrumental: true, StyleTags: []string{"rock"}}

	result := c.run(context.Background(), newState(c, req), StageComposer, malformedOracle(), nil)
	require.True(t, result.Success)

	assert.NotContains(t, visited, StageLyricist)
	assert.NotContains(t, visited, StageVocalist)
	for i := range result.SongDocument.Tracks {
		assert.False(t, result.SongDocument.Tracks[i].IsVocal())
	}
}

// qaFailingOracle fails the quality gate with the given issue and answers
// everything else with valid minimal JSON.
func qaFailingOracle(issue string) *stubOracle {
	return &stubOracle{fn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "quality gate") {
			return `{"verdict": "fail", "issues": ["` + issue + `"]}`, nil
		}
		return "garbage {{{", nil
	}}
}

func TestRunSuspendsForUserApprovalOnQAFeedback(t *testing.T) {
	c := newTestController(nil)
	req := models.GenerationRequest{SongIdea: "x", StyleTags: []string{"pop"}}

	result := c.run(context.Background(), newState(c, req), StageComposer, qaFailingOracle("the chorus drags"), nil)
	require.False(t, result.Success)
	require.True(t, result.UserApprovalRequired)
	assert.NotEmpty(t, result.SessionID)
	assert.Equal(t, []string{"the chorus drags"}, result.QAFeedback)
	assert.NotNil(t, result.SongDocument, "a draft accompanies the approval request")
	require.NotNil(t, result.UserApprovalData)
	assert.Equal(t, 0, result.UserApprovalData.RestartsUsed)
	assert.Equal(t, 2, result.UserApprovalData.RestartBudget)
	assert.Equal(t, 1, c.sessions.Len())
}

func TestRestartTermination(t *testing.T) {
	c := newTestController(nil)
	req := models.GenerationRequest{SongIdea: "x"}
	oracle := qaFailingOracle("never good enough")

	result := c.run(context.Background(), newState(c, req), StageComposer, oracle, nil)
	qaEvaluations := 1

	// Drive the improve loop the way SubmitUserDecision does until the
	// budget forces completion.
	for result.UserApprovalRequired {
		state, ok := c.sessions.Take(result.SessionID)
		require.True(t, ok)
		target := ClassifyFeedback(state.QAFeedback, state.Request.IsInstrumental)
		state.QARestartCount++
		result = c.run(context.Background(), state, target, oracle, nil)
		qaEvaluations++
	}

	assert.True(t, result.Success, "budget exhaustion forces completion")
	assert.NotEmpty(t, result.QAFeedback, "outstanding feedback survives the forced completion")
	assert.LessOrEqual(t, qaEvaluations, c.cfg.MaxQARestarts+1)
}

func TestSubmitUserDecisionAcceptAndDuplicate(t *testing.T) {
	c := newTestController(nil)
	req := models.GenerationRequest{SongIdea: "x"}

	pending := c.run(context.Background(), newState(c, req), StageComposer, qaFailingOracle("meh"), nil)
	require.True(t, pending.UserApprovalRequired)

	accepted, ok := c.SubmitUserDecision(context.Background(), pending.SessionID, DecisionAccept)
	require.True(t, ok)
	assert.True(t, accepted.Success)
	assert.NotNil(t, accepted.SongDocument)

	// A duplicate submission finds no session.
	dup, ok := c.SubmitUserDecision(context.Background(), pending.SessionID, DecisionAccept)
	assert.False(t, ok)
	assert.Nil(t, dup)
}

func TestRunTimeoutIsDistinguishable(t *testing.T) {
	c := newTestController(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := c.run(ctx, newState(c, models.GenerationRequest{SongIdea: "x"}), StageComposer, malformedOracle(), nil)
	assert.False(t, result.Success)
	assert.True(t, result.Timeout)
	assert.NotEmpty(t, result.Error)
}

func TestGenerateSongWithoutProvidersFailsFast(t *testing.T) {
	c := newTestController(nil)
	c.registry = llm.NewRegistry("", "")

	result := c.GenerateSong(context.Background(), models.GenerationRequest{SongIdea: "x"}, nil)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "OPENAI_API_KEY")
}

func TestProgressRestartPenalty(t *testing.T) {
	assert.Equal(t, 10, progressPercent(StageComposer, 0))
	assert.Equal(t, 1, progressPercent(StageComposer, 1), "penalty floors at 1")
	assert.Equal(t, 80, progressPercent(StageQA, 1))
	assert.Equal(t, 65, progressPercent(StageQA, 2))
	assert.Equal(t, 65, progressPercent(StageQA, 5), "penalty is capped")
}
