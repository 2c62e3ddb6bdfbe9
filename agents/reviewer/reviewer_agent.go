// Package reviewer is the pre-assembly gate: it inspects the generated
// draft and recommends either continuing or one revision pass.
package reviewer

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/parse"
	"github.com/harmoniq-labs/songgen-agents-go/prompt"
)

// Recommendations the controller routes on.
const (
	RecommendContinue = "continue"
	RecommendRevise   = "revise"
)

// Agent is the reviewer stage.
type Agent struct {
	prompts *prompt.Builder
}

// New creates the reviewer agent.
func New() *Agent {
	return &Agent{prompts: prompt.NewBuilder()}
}

// Name returns the stage identifier.
func (a *Agent) Name() string { return "reviewer" }

// Run sets state.Recommendation. The stage is deliberately conservative:
// only an oracle verdict flagged critical, within the revision budget,
// produces "revise". Oracle failures, parse failures and routine
// imperfections all continue.
func (a *Agent) Run(ctx context.Context, state models.SongState, catalog *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error) {
	state.Recommendation = RecommendContinue

	if problems := structuralProblems(&state); len(problems) > 0 {
		// Mechanically detectable defects do not need an oracle opinion.
		state.ReviewNotes = append(append([]string(nil), state.ReviewNotes...), problems...)
		if state.RevisionCount < state.MaxRevisions {
			log.Printf("🔍 REVIEWER: structural defects found, requesting revision: %v", problems)
			state.Recommendation = RecommendRevise
		} else {
			log.Printf("⚠️  REVIEWER: structural defects remain but revision budget spent: %v", problems)
		}
		return state, nil
	}

	raw, err := oracle.Complete(ctx, a.prompts.Reviewer(&state, draftSummary(&state)))
	if err != nil {
		log.Printf("⚠️  REVIEWER: oracle failed, continuing without review: %v", err)
		state = state.WithError(fmt.Sprintf("reviewer: oracle failed: %v", err))
		return state, nil
	}

	m := parse.Mapping(raw, map[string]any{"recommendation": RecommendContinue})
	notes := parse.StringSlice(m, "notes")
	if len(notes) > 0 {
		state.ReviewNotes = append(append([]string(nil), state.ReviewNotes...), notes...)
	}

	critical := parse.Bool(m, "critical", false)
	recommendation := strings.ToLower(parse.String(m, "recommendation", RecommendContinue))
	if recommendation == RecommendRevise && critical && state.RevisionCount < state.MaxRevisions {
		log.Printf("🔍 REVIEWER: critical defect reported, requesting revision: %v", notes)
		state.Recommendation = RecommendRevise
	} else if recommendation == RecommendRevise {
		log.Printf("🔍 REVIEWER: non-critical revise request ignored (revision %d/%d)",
			state.RevisionCount, state.MaxRevisions)
	} else {
		log.Printf("✅ REVIEWER: draft approved")
	}
	return state, nil
}

// structuralProblems reports playback-blocking defects the pipeline can
// detect without an oracle.
func structuralProblems(state *models.SongState) []string {
	var problems []string
	tracks := state.AllTracks()
	if len(tracks) == 0 {
		problems = append(problems, "song has no tracks")
	}
	for i := range tracks {
		track := &tracks[i]
		if len(track.Clips) == 0 {
			problems = append(problems, fmt.Sprintf("track %q has no clips", track.Name))
			continue
		}
		for j := range track.Clips {
			clip := &track.Clips[j]
			if clip.Type == models.ClipTypeSynth && len(clip.Notes) == 0 {
				problems = append(problems, fmt.Sprintf("synth clip on %q has no notes", track.Name))
			}
			if clip.Type == models.ClipTypeLyrics && len(clip.Voices) == 0 {
				problems = append(problems, fmt.Sprintf("lyrics clip on %q has no voices", track.Name))
			}
		}
	}
	if !state.Request.IsInstrumental && len(state.VocalTracks) == 0 && len(state.Lyrics.Sections) > 0 {
		problems = append(problems, "lyrics exist but no vocal track was generated")
	}
	return problems
}

func draftSummary(state *models.SongState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Tempo %d bpm, key %s, %d sections, duration %ds.\n",
		state.GlobalParams.Tempo, state.GlobalParams.Key,
		len(state.Arrangement.Structure), state.GlobalParams.DurationSeconds)
	for _, track := range state.AllTracks() {
		fmt.Fprintf(&b, "- %s (%s): %d clips\n", track.Name, track.Instrument, len(track.Clips))
	}
	if len(state.Lyrics.Sections) > 0 {
		fmt.Fprintf(&b, "Lyrics cover %d sections.\n", len(state.Lyrics.Sections))
	}
	return b.String()
}
