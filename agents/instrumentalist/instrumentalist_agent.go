// Package instrumentalist writes the note content for every non-vocal
// planned track, one synth clip per covered section.
package instrumentalist

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/music"
	"github.com/harmoniq-labs/songgen-agents-go/parse"
	"github.com/harmoniq-labs/songgen-agents-go/prompt"
)

// Agent is the instrumentalist stage.
type Agent struct {
	prompts *prompt.Builder
}

// New creates the instrumentalist agent.
func New() *Agent {
	return &Agent{prompts: prompt.NewBuilder()}
}

// Name returns the stage identifier.
func (a *Agent) Name() string { return "instrumentalist" }

// Run fills in state.InstrumentalTracks. All tracks are written in a
// single completion. Every clip leaves this stage as a synth clip with a
// non-empty top-level notes array: oracle output that nests notes deeper is
// hoisted, and failures fall back to the fixed per-category pattern in the
// song key.
func (a *Agent) Run(ctx context.Context, state models.SongState, catalog *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error) {
	var planned []*models.PlannedTrack
	for i := range state.Arrangement.PlannedTracks {
		p := &state.Arrangement.PlannedTracks[i]
		if p.Instrument == models.VocalsInstrument || p.Category == "vocal" {
			continue
		}
		planned = append(planned, p)
	}

	allNotes := a.generateAllNotes(ctx, &state, planned, oracle)

	var tracks []models.Track
	for _, p := range planned {
		track := models.Track{
			ID:         models.NewID(),
			Name:       p.Name,
			Instrument: p.Instrument,
			Category:   p.Category,
			Volume:     p.Volume,
			Pan:        p.Pan,
		}

		sectionNotes := allNotes[p.Name]
		for _, section := range p.Sections {
			span, ok := state.Arrangement.Structure[section]
			if !ok {
				continue
			}
			notes := sectionNotes[section]
			if len(notes) == 0 {
				notes = music.DefaultPattern(p.Category, p.Role, state.GlobalParams.Key, span.Bars)
			}
			track.Clips = append(track.Clips, models.Clip{
				ID:         models.NewID(),
				TrackID:    track.ID,
				StartTime:  span.StartTime,
				Duration:   span.Duration,
				Type:       models.ClipTypeSynth,
				Instrument: p.Instrument,
				Volume:     1,
				Notes:      notes,
			})
		}

		if len(track.Clips) == 0 {
			log.Printf("⚠️  INSTRUMENTALIST: track %q covers no known section, dropping it", p.Name)
			continue
		}
		log.Printf("🎹 INSTRUMENTALIST: track %q with %d clips", track.Name, len(track.Clips))
		tracks = append(tracks, track)
	}

	state.InstrumentalTracks = tracks
	return state, nil
}

// generateAllNotes asks the oracle for per-section notes across every
// planned track in one completion. Failure returns an empty map; the caller
// substitutes default patterns.
func (a *Agent) generateAllNotes(ctx context.Context, state *models.SongState, planned []*models.PlannedTrack, oracle llm.Oracle) map[string]map[string][]string {
	if len(planned) == 0 {
		return nil
	}

	lines := make([]string, 0, len(planned))
	for _, p := range planned {
		octave := music.RegisterOctave(p.Category, p.Role)
		lines = append(lines, fmt.Sprintf("- %s: %s (%s, %s role), sections: %s, around octave %d",
			p.Name, p.Instrument, p.Category, p.Role, strings.Join(p.Sections, ", "), octave))
	}

	raw, err := oracle.Complete(ctx, a.prompts.Instrumentalist(state, lines))
	if err != nil {
		log.Printf("⚠️  INSTRUMENTALIST: oracle failed, using default patterns: %v", err)
		return nil
	}

	m := parse.Mapping(raw, nil)
	if m == nil {
		log.Printf("⚠️  INSTRUMENTALIST: unparseable output, using default patterns")
		return nil
	}

	byTrack := parse.Map(m, "tracks")
	if byTrack == nil {
		// Some completions skip the wrapper and key tracks at top level.
		byTrack = m
	}

	out := make(map[string]map[string][]string, len(planned))
	for _, p := range planned {
		tv, ok := lookupFold(byTrack, p.Name)
		if !ok && len(planned) == 1 {
			// A single-track completion sometimes answers with the track
			// object directly.
			tv, ok = m, true
		}
		if !ok {
			log.Printf("⚠️  INSTRUMENTALIST: oracle skipped track %q, using default patterns", p.Name)
			continue
		}
		tm, isMap := tv.(map[string]any)
		if !isMap {
			continue
		}

		bySection := parse.Map(tm, "sections")
		if bySection == nil {
			bySection = tm
		}
		notes := make(map[string][]string, len(p.Sections))
		for _, section := range p.Sections {
			raw, ok := lookupFold(bySection, section)
			if !ok {
				continue
			}
			if ns := hoistNotes(raw); len(ns) > 0 {
				notes[section] = ns
			}
		}
		out[p.Name] = notes
	}
	return out
}

// hoistNotes extracts a flat note list from whatever shape the oracle chose:
// a bare array, {"notes": [...]}, or notes nested one level deeper under
// keys like "clip" or "content".
func hoistNotes(raw any) []string {
	switch v := raw.(type) {
	case []any:
		return noteStrings(v)
	case map[string]any:
		if notes, ok := v["notes"].([]any); ok {
			return noteStrings(notes)
		}
		for _, nested := range v {
			if notes := hoistNotes(nested); len(notes) > 0 {
				return notes
			}
		}
	}
	return nil
}

func noteStrings(items []any) []string {
	var notes []string
	for _, item := range items {
		switch v := item.(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				notes = append(notes, s)
			}
		case map[string]any:
			// Note objects like {"pitch": "C4", "duration": 1}.
			if s := parse.String(v, "pitch", parse.String(v, "note", "")); s != "" {
				notes = append(notes, s)
			}
		}
	}
	return notes
}

func lookupFold(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for name, v := range m {
		if strings.EqualFold(name, key) {
			return v, true
		}
	}
	return nil, false
}
