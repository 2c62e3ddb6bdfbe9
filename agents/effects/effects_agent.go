// Package effects assigns mix effect sends (reverb, delay, distortion) to
// the generated tracks.
package effects

import (
	"context"
	"fmt"
	"log"

	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/parse"
	"github.com/harmoniq-labs/songgen-agents-go/prompt"
)

// Agent is the effects stage.
type Agent struct {
	prompts *prompt.Builder
}

// New creates the effects agent.
func New() *Agent {
	return &Agent{prompts: prompt.NewBuilder()}
}

// Name returns the stage identifier.
func (a *Agent) Name() string { return "effects" }

// Run fills in state.EffectsConfig keyed by track id. Oracle failures fall
// back to style and category heuristics; all sends are clamped to [0,1].
func (a *Agent) Run(ctx context.Context, state models.SongState, catalog *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error) {
	tracks := state.AllTracks()
	if len(tracks) == 0 {
		state.EffectsConfig = models.EffectsConfig{
			TrackEffects: map[string]models.Effects{},
			ClipEffects:  map[string]models.Effects{},
		}
		return state, nil
	}

	summaries := make([]string, 0, len(tracks))
	for i := range tracks {
		summaries = append(summaries, fmt.Sprintf("- id %s: %s (%s, %d clips)",
			tracks[i].ID, tracks[i].Name, tracks[i].Instrument, len(tracks[i].Clips)))
	}

	config := models.EffectsConfig{
		TrackEffects: map[string]models.Effects{},
		ClipEffects:  map[string]models.Effects{},
	}

	raw, err := oracle.Complete(ctx, a.prompts.EffectsPrompt(&state, summaries))
	if err != nil {
		log.Printf("⚠️  EFFECTS: oracle failed, using heuristic sends: %v", err)
		state = state.WithError(fmt.Sprintf("effects: oracle failed: %v", err))
		for i := range tracks {
			config.TrackEffects[tracks[i].ID] = heuristicEffects(&state.Request, &tracks[i])
		}
		state.EffectsConfig = config
		return state, nil
	}

	m := parse.Mapping(raw, nil)
	byTrack := parse.Map(m, "trackEffects")
	for i := range tracks {
		track := &tracks[i]
		fx, ok := effectsFor(byTrack, track)
		if !ok {
			fx = heuristicEffects(&state.Request, track)
		}
		config.TrackEffects[track.ID] = fx
	}

	log.Printf("🎚️  EFFECTS: sends for %d tracks", len(config.TrackEffects))
	state.EffectsConfig = config
	return state, nil
}

// effectsFor matches an oracle entry by track id, falling back to the track
// name since completions frequently key by name instead.
func effectsFor(byTrack map[string]any, track *models.Track) (models.Effects, bool) {
	raw, ok := byTrack[track.ID]
	if !ok {
		raw, ok = byTrack[track.Name]
	}
	if !ok {
		return models.Effects{}, false
	}
	em, ok := raw.(map[string]any)
	if !ok {
		return models.Effects{}, false
	}
	return models.Effects{
		Reverb:     clamp01(parse.Float(em, "reverb", 0)),
		Delay:      clamp01(parse.Float(em, "delay", 0)),
		Distortion: clamp01(parse.Float(em, "distortion", 0)),
	}, true
}

// heuristicEffects is the deterministic fallback: vocals get hall-ish
// reverb, rock guitars get drive, everything else gets a light room.
func heuristicEffects(req *models.GenerationRequest, track *models.Track) models.Effects {
	if track.IsVocal() {
		return models.Effects{Reverb: 0.3, Delay: 0.15}
	}
	switch track.Category {
	case "percussion", "drums":
		return models.Effects{Reverb: 0.1}
	case "bass":
		return models.Effects{}
	case "guitar":
		if req.HasStyle("rock", "punk", "metal") {
			return models.Effects{Reverb: 0.15, Distortion: 0.4}
		}
		return models.Effects{Reverb: 0.2}
	default:
		fx := models.Effects{Reverb: 0.2}
		if req.HasStyle("ambient", "dream", "shoegaze") {
			fx.Reverb = 0.5
			fx.Delay = 0.3
		}
		return fx
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
