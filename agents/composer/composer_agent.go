// Package composer decides the song's global musical parameters: tempo,
// key, time signature and duration.
package composer

import (
	"context"
	"fmt"
	"log"

	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/parse"
	"github.com/harmoniq-labs/songgen-agents-go/prompt"
)

// Tempo and duration bounds enforced regardless of what the oracle returns.
const (
	MinTempo    = 60
	MaxTempo    = 200
	MinDuration = 60
	MaxDuration = 600
)

// Agent is the composer stage.
type Agent struct {
	prompts *prompt.Builder
}

// New creates the composer agent.
func New() *Agent {
	return &Agent{prompts: prompt.NewBuilder()}
}

// Name returns the stage identifier.
func (a *Agent) Name() string { return "composer" }

// Run fills in state.GlobalParams. Oracle or parse failures fall back to a
// style-aware heuristic default; the stage never fails the workflow.
func (a *Agent) Run(ctx context.Context, state models.SongState, catalog *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error) {
	fallback := a.defaultParams(&state.Request)

	raw, err := oracle.Complete(ctx, a.prompts.Composer(&state))
	if err != nil {
		log.Printf("⚠️  COMPOSER: oracle failed, using heuristic defaults: %v", err)
		state = state.WithError(fmt.Sprintf("composer: oracle failed: %v", err))
		state.GlobalParams = fallback
		return state, nil
	}

	m := parse.Mapping(raw, map[string]any{
		"tempo":           fallback.Tempo,
		"key":             fallback.Key,
		"durationSeconds": fallback.DurationSeconds,
	})

	params := models.GlobalParams{
		Tempo:           clamp(parse.Int(m, "tempo", fallback.Tempo), MinTempo, MaxTempo),
		Key:             parse.String(m, "key", fallback.Key),
		TimeSignature:   [2]int{4, 4},
		DurationSeconds: clamp(parse.Int(m, "durationSeconds", fallback.DurationSeconds), MinDuration, MaxDuration),
	}
	if rawTS, ok := m["timeSignature"].([]any); ok && len(rawTS) == 2 {
		num, numOK := asInt(rawTS[0])
		den, denOK := asInt(rawTS[1])
		if numOK && denOK && num > 0 && den > 0 {
			params.TimeSignature = [2]int{num, den}
		}
	}
	params.EstimatedBars = estimateBars(params.Tempo, params.DurationSeconds, params.TimeSignature[0])

	log.Printf("🎼 COMPOSER: %d bpm, %s, %ds (~%d bars)",
		params.Tempo, params.Key, params.DurationSeconds, params.EstimatedBars)
	state.GlobalParams = params
	return state, nil
}

// defaultParams is the deterministic fallback keyed off the style tags.
func (a *Agent) defaultParams(req *models.GenerationRequest) models.GlobalParams {
	tempo := 120
	switch {
	case req.HasStyle("ballad", "ambient", "lullaby", "acoustic"):
		tempo = 70
	case req.HasStyle("edm", "dance", "house", "techno"):
		tempo = 128
	case req.HasStyle("jazz", "blues"):
		tempo = 100
	case req.HasStyle("rock", "punk"):
		tempo = 140
	}

	key := req.PreferredKey
	if key == "" {
		key = "C major"
		if req.HasStyle("sad", "dark", "melancholy") || req.Mood == "sad" {
			key = "A minor"
		}
	}

	duration := clamp(req.DurationTarget(), MinDuration, MaxDuration)
	return models.GlobalParams{
		Tempo:           tempo,
		Key:             key,
		TimeSignature:   [2]int{4, 4},
		DurationSeconds: duration,
		EstimatedBars:   estimateBars(tempo, duration, 4),
	}
}

func estimateBars(tempo, durationSeconds, beatsPerBar int) int {
	if beatsPerBar <= 0 {
		beatsPerBar = 4
	}
	bars := durationSeconds * tempo / 60 / beatsPerBar
	if bars < 1 {
		bars = 1
	}
	return bars
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}
