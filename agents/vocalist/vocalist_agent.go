// Package vocalist turns section lyrics into vocal tracks: lyrics clips
// whose voices carry pitched, timed lyric lines.
package vocalist

import (
	"context"
	"log"
	"strings"

	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/music"
	"github.com/harmoniq-labs/songgen-agents-go/parse"
	"github.com/harmoniq-labs/songgen-agents-go/prompt"
)

// Agent is the vocalist stage.
type Agent struct {
	prompts *prompt.Builder
}

// New creates the vocalist agent.
func New() *Agent {
	return &Agent{prompts: prompt.NewBuilder()}
}

// Name returns the stage identifier.
func (a *Agent) Name() string { return "vocalist" }

// Run fills in state.VocalTracks from the arrangement's vocal plan and the
// lyricist's sections. Instrumental songs and plans with no vocal tracks
// produce an empty list without calling the oracle. Each vocal track costs
// one completion covering all of its sections; oracle failures degrade to a
// single-note melody on the tonic and the stage never fails the workflow.
func (a *Agent) Run(ctx context.Context, state models.SongState, catalog *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error) {
	if state.Request.IsInstrumental || state.Lyrics.IsInstrumental {
		log.Printf("🎸 VOCALIST: instrumental song, no vocal tracks")
		state.VocalTracks = nil
		return state, nil
	}

	var tracks []models.Track
	for i := range state.Arrangement.PlannedTracks {
		planned := &state.Arrangement.PlannedTracks[i]
		if planned.Instrument != models.VocalsInstrument && planned.Category != "vocal" {
			continue
		}

		voiceID, rangeClass := a.resolveVoice(planned, catalog)
		track := models.Track{
			ID:         models.NewID(),
			Name:       planned.Name,
			Instrument: models.VocalsInstrument,
			Category:   "vocal",
			Volume:     planned.Volume,
			Pan:        planned.Pan,
		}

		var sections []string
		for _, section := range planned.Sections {
			if len(state.Lyrics.Sections[section]) == 0 {
				continue
			}
			if _, ok := state.Arrangement.Structure[section]; !ok {
				continue
			}
			sections = append(sections, section)
		}

		melodies := a.melodiesFor(ctx, &state, planned, sections, rangeClass, oracle)
		for _, section := range sections {
			span := state.Arrangement.Structure[section]
			clip := models.Clip{
				ID:         models.NewID(),
				TrackID:    track.ID,
				StartTime:  span.StartTime,
				Duration:   span.Duration,
				Type:       models.ClipTypeLyrics,
				Instrument: models.VocalsInstrument,
				Volume:     1,
			}
			clip.Voices = []models.VoiceLine{{
				VoiceID: voiceID,
				Lyrics:  melodies[section],
			}}
			track.Clips = append(track.Clips, clip)
		}

		if len(track.Clips) == 0 {
			log.Printf("⚠️  VOCALIST: no lyric sections matched track %q, dropping it", planned.Name)
			continue
		}
		log.Printf("🎤 VOCALIST: track %q with %d lyric clips (voice %s)", track.Name, len(track.Clips), voiceID)
		tracks = append(tracks, track)
	}

	state.VocalTracks = tracks
	return state, nil
}

// resolveVoice validates the planned voice against the catalog. An unknown
// voice id is logged and replaced with the first catalog voice, never a
// hard failure.
func (a *Agent) resolveVoice(planned *models.PlannedTrack, catalog *models.ResourceCatalog) (voiceID, rangeClass string) {
	voiceID = planned.VoiceID
	if voiceID != "" && !catalog.HasVoice(voiceID) {
		log.Printf("⚠️  VOCALIST: unknown voice %q, falling back to catalog default", voiceID)
		voiceID = ""
	}
	if voiceID == "" {
		ids := catalog.VoiceIDs()
		if len(ids) > 0 {
			voiceID = ids[0]
		} else {
			voiceID = "voice_alto_1"
		}
	}
	if v, ok := catalog.Voices[voiceID]; ok {
		rangeClass = v.Range
	}
	if rangeClass == "" {
		rangeClass = music.RangeAlto
	}
	return voiceID, rangeClass
}

// melodiesFor asks the oracle for pitches across all of the track's
// sections in one completion and normalizes the result. The returned map
// has an entry for every requested section; sections the oracle skipped or
// garbled carry the single-note fallback.
func (a *Agent) melodiesFor(ctx context.Context, state *models.SongState, planned *models.PlannedTrack, sections []string, rangeClass string, oracle llm.Oracle) map[string][]models.LyricLine {
	if len(sections) == 0 {
		return nil
	}
	rangeNotes := music.VocalRangeNotes(rangeClass, state.GlobalParams.Key)

	out := make(map[string][]models.LyricLine, len(sections))
	for _, section := range sections {
		out[section] = singleNoteLines(state.Lyrics.Sections[section], rangeNotes)
	}

	raw, err := oracle.Complete(ctx, a.prompts.Vocalist(state, planned, sections, state.Lyrics.Sections, rangeNotes))
	if err != nil {
		log.Printf("⚠️  VOCALIST: oracle failed for track %q, using single-note melodies: %v", planned.Name, err)
		return out
	}

	m := parse.Mapping(raw, nil)
	if m == nil {
		return out
	}
	bySection := parse.Map(m, "sections")
	if bySection == nil {
		bySection = m
	}

	for _, section := range sections {
		sm, ok := sectionObject(bySection, section)
		if !ok && len(sections) == 1 && m["lines"] != nil {
			// Single-section completions sometimes skip the wrapper.
			sm, ok = m, true
		}
		if !ok {
			log.Printf("⚠️  VOCALIST: oracle skipped section %q, using single-note melody", section)
			continue
		}
		out[section] = alignLines(parseLines(sm, rangeNotes), state.Lyrics.Sections[section], rangeNotes)
	}
	return out
}

// sectionObject finds the section's object with case-tolerant matching.
func sectionObject(bySection map[string]any, section string) (map[string]any, bool) {
	v, ok := bySection[section]
	if !ok {
		for name, nested := range bySection {
			if strings.EqualFold(name, section) {
				v, ok = nested, true
				break
			}
		}
	}
	if !ok {
		return nil, false
	}
	sm, isMap := v.(map[string]any)
	return sm, isMap
}

// parseLines extracts the oracle's lyric lines from one section object.
func parseLines(sm map[string]any, rangeNotes []string) []models.LyricLine {
	var parsed []models.LyricLine
	for _, lm := range parse.MapSlice(sm, "lines") {
		line := models.LyricLine{
			Text:  parse.String(lm, "text", ""),
			Notes: keepInRange(parse.StringSlice(lm, "notes"), rangeNotes),
			Start: parse.Float(lm, "start", 0),
		}
		for _, d := range parse.FloatSlice(lm, "durations") {
			line.Durations = append(line.Durations, d)
		}
		parsed = append(parsed, normalizeLine(line, rangeNotes))
	}
	return parsed
}

// alignLines maps the parsed melody lines back onto the lyricist's lines.
// Every lyricist line must survive, in order, even if the oracle dropped or
// reordered some; starts are kept monotonic.
func alignLines(parsed []models.LyricLine, lines []string, rangeNotes []string) []models.LyricLine {
	byText := make(map[string]models.LyricLine, len(parsed))
	for _, line := range parsed {
		byText[strings.ToLower(line.Text)] = line
	}

	out := make([]models.LyricLine, 0, len(lines))
	beat := 0.0
	for i, text := range lines {
		line, ok := byText[strings.ToLower(text)]
		if !ok && i < len(parsed) {
			line = parsed[i]
			line.Text = text
			ok = true
		}
		if !ok {
			line = singleNoteLines([]string{text}, rangeNotes)[0]
		}
		if line.Start < beat {
			line.Start = beat
		}
		beat = line.Start + lineBeats(line)
		out = append(out, line)
	}
	return out
}

// normalizeLine enforces the duration contract: a one-note line gets a
// scalar duration, a multi-note line gets a durations array of matching
// length.
func normalizeLine(line models.LyricLine, rangeNotes []string) models.LyricLine {
	if len(line.Notes) == 0 {
		line.Notes = []string{rangeNotes[0]}
	}

	if len(line.Notes) == 1 {
		d := 1.0
		if len(line.Durations) > 0 {
			d = line.Durations[0]
		} else if line.Duration != nil {
			d = *line.Duration
		}
		if d <= 0 {
			d = 1
		}
		line.Duration = &d
		line.Durations = nil
		return line
	}

	durations := make([]float64, len(line.Notes))
	for i := range durations {
		durations[i] = 0.5
		if i < len(line.Durations) && line.Durations[i] > 0 {
			durations[i] = line.Durations[i]
		}
	}
	line.Duration = nil
	line.Durations = durations
	return line
}

// singleNoteLines is the deterministic fallback: each line sung on the
// first (tonic) range note for one beat, lines spaced two beats apart.
func singleNoteLines(lines []string, rangeNotes []string) []models.LyricLine {
	note := rangeNotes[0]
	out := make([]models.LyricLine, 0, len(lines))
	for i, text := range lines {
		d := 1.0
		out = append(out, models.LyricLine{
			Text:     text,
			Notes:    []string{note},
			Start:    float64(i * 2),
			Duration: &d,
		})
	}
	return out
}

// keepInRange drops pitches outside the singable set. An empty result is
// fine; normalizeLine restores the tonic.
func keepInRange(notes, rangeNotes []string) []string {
	allowed := make(map[string]bool, len(rangeNotes))
	for _, n := range rangeNotes {
		allowed[strings.ToUpper(n)] = true
	}
	var kept []string
	for _, n := range notes {
		if allowed[strings.ToUpper(strings.TrimSpace(n))] {
			kept = append(kept, strings.ToUpper(strings.TrimSpace(n)))
		}
	}
	if len(kept) == 0 && len(notes) > 0 {
		log.Printf("⚠️  VOCALIST: all %d notes out of range, reverting to tonic", len(notes))
	}
	return kept
}

func lineBeats(line models.LyricLine) float64 {
	if line.Duration != nil {
		return *line.Duration
	}
	var total float64
	for _, d := range line.Durations {
		total += d
	}
	return total
}
