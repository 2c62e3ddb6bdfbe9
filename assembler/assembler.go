// Package assembler merges the stage outputs into the final song document
// and repairs it against the DAW schema. Everything here is deterministic;
// no oracle is consulted.
package assembler

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/music"
)

// Document defaults applied by Repair.
const (
	DefaultVolume = 0.8
	DefaultTempo  = 120
	DefaultKey    = "C major"
	DefaultName   = "Untitled Song"
)

// Build merges vocal and instrumental tracks into a SongDocument and
// applies the effects stage's per-track and per-clip overrides. Tracks
// without an override keep neutral effects.
func Build(state *models.SongState) *models.SongDocument {
	doc := &models.SongDocument{
		ID:            models.NewID(),
		Name:          songName(state),
		Tempo:         state.GlobalParams.Tempo,
		TimeSignature: state.GlobalParams.TimeSignature,
		Key:           state.GlobalParams.Key,
		Duration:      float64(state.GlobalParams.DurationSeconds),
		Lyrics:        FlattenLyrics(state),
		AlbumCover:    state.AlbumArt.ImageURL,
		CreatedAt:     models.NowISO(),
		UpdatedAt:     models.NowISO(),
	}

	for _, track := range state.AllTracks() {
		if fx, ok := state.EffectsConfig.TrackEffects[track.ID]; ok {
			track.Effects = fx
		}
		for i := range track.Clips {
			if fx, ok := state.EffectsConfig.ClipEffects[track.Clips[i].ID]; ok {
				track.Clips[i].Effects = fx
			}
		}
		doc.Tracks = append(doc.Tracks, track)
	}
	return doc
}

// Repair normalizes the document in place until it satisfies the DAW
// schema, returning a human-readable list of applied corrections. Repair is
// idempotent: a repaired document passes through unchanged.
func Repair(doc *models.SongDocument) []string {
	var corrections []string
	note := func(format string, args ...any) {
		corrections = append(corrections, fmt.Sprintf(format, args...))
	}

	if doc.ID == "" {
		doc.ID = models.NewID()
		note("assigned missing document id")
	}
	if doc.Name == "" {
		doc.Name = DefaultName
		note("assigned default song name")
	}
	if doc.Tempo < 60 || doc.Tempo > 200 {
		old := doc.Tempo
		doc.Tempo = clampInt(doc.Tempo, 60, 200)
		if old == 0 {
			doc.Tempo = DefaultTempo
		}
		note("clamped tempo %d to %d", old, doc.Tempo)
	}
	if doc.TimeSignature[0] <= 0 || doc.TimeSignature[1] <= 0 {
		doc.TimeSignature = [2]int{4, 4}
		note("reset invalid time signature to 4/4")
	}
	if doc.Key == "" {
		doc.Key = DefaultKey
		note("assigned default key")
	}
	if doc.CreatedAt == "" {
		doc.CreatedAt = models.NowISO()
	}
	if doc.UpdatedAt == "" {
		doc.UpdatedAt = doc.CreatedAt
	}

	seen := map[string]bool{}
	for i := range doc.Tracks {
		repairTrack(doc, &doc.Tracks[i], seen, note)
	}

	if doc.Duration <= 0 {
		doc.Duration = timelineEnd(doc)
		if doc.Duration <= 0 {
			doc.Duration = 180
		}
		note("derived document duration %.0fs", doc.Duration)
	}
	return corrections
}

func repairTrack(doc *models.SongDocument, track *models.Track, seen map[string]bool, note func(string, ...any)) {
	if track.ID == "" || seen[track.ID] {
		track.ID = models.NewID()
		note("assigned unique id to track %q", track.Name)
		for i := range track.Clips {
			track.Clips[i].TrackID = track.ID
		}
	}
	seen[track.ID] = true

	if track.Name == "" {
		track.Name = track.Instrument
		if track.Name == "" {
			track.Name = "track"
		}
		note("named anonymous track %q", track.Name)
	}
	if track.Instrument == "" {
		track.Instrument = track.Name
		note("filled missing instrument on track %q", track.Name)
	}
	if track.Volume <= 0 {
		track.Volume = DefaultVolume
		note("set default volume on track %q", track.Name)
	}
	if track.Pan < -1 || track.Pan > 1 {
		track.Pan = 0
		note("reset out-of-range pan on track %q", track.Name)
	}

	for i := range track.Clips {
		repairClip(doc, track, &track.Clips[i], seen, note)
	}
}

// repairClip enforces the clip variant invariant: synth clips carry notes
// and never voices, lyrics clips carry voices and never notes.
func repairClip(doc *models.SongDocument, track *models.Track, clip *models.Clip, seen map[string]bool, note func(string, ...any)) {
	if clip.ID == "" || seen[clip.ID] {
		clip.ID = models.NewID()
		note("assigned unique id to clip on track %q", track.Name)
	}
	seen[clip.ID] = true

	if clip.TrackID != track.ID {
		clip.TrackID = track.ID
		note("relinked clip to track %q", track.Name)
	}
	if clip.Instrument == "" {
		clip.Instrument = track.Instrument
	}
	if clip.Volume <= 0 {
		clip.Volume = 1
	}
	if clip.Duration <= 0 {
		clip.Duration = 4
		note("set default duration on clip of track %q", track.Name)
	}

	if clip.Type != models.ClipTypeSynth && clip.Type != models.ClipTypeLyrics {
		clip.Type = models.ClipTypeSynth
		if len(clip.Voices) > 0 {
			clip.Type = models.ClipTypeLyrics
		}
		note("tagged untyped clip on track %q as %s", track.Name, clip.Type)
	}

	switch clip.Type {
	case models.ClipTypeSynth:
		if len(clip.Voices) > 0 {
			clip.Voices = nil
			note("stripped voices from synth clip on track %q", track.Name)
		}
		if len(clip.Notes) == 0 {
			bars := int(clip.Duration * float64(doc.Tempo) / 60 / 4)
			clip.Notes = music.DefaultPattern(track.Category, "", doc.Key, bars)
			note("filled empty synth clip on track %q with a default pattern", track.Name)
		}
	case models.ClipTypeLyrics:
		if len(clip.Notes) > 0 {
			clip.Notes = nil
			note("stripped notes from lyrics clip on track %q", track.Name)
		}
		for vi := range clip.Voices {
			repairVoice(&clip.Voices[vi], track, note)
		}
	}
}

// repairVoice enforces the lyric-line duration contract: exactly one of
// duration or durations, with durations matching the note count.
func repairVoice(voice *models.VoiceLine, track *models.Track, note func(string, ...any)) {
	if voice.VoiceID == "" {
		voice.VoiceID = "voice_alto_1"
		note("assigned default voice on track %q", track.Name)
	}
	for li := range voice.Lyrics {
		line := &voice.Lyrics[li]
		if len(line.Notes) == 0 {
			line.Notes = []string{"A4"}
			note("gave a pitch to silent lyric line %q", line.Text)
		}
		if len(line.Notes) == 1 {
			if line.Duration == nil {
				d := 1.0
				if len(line.Durations) == 1 {
					d = line.Durations[0]
				}
				line.Duration = &d
			}
			if line.Durations != nil {
				line.Durations = nil
				note("collapsed durations on single-note line %q", line.Text)
			}
			continue
		}
		if line.Duration != nil || len(line.Durations) != len(line.Notes) {
			durations := make([]float64, len(line.Notes))
			for i := range durations {
				durations[i] = 0.5
				if i < len(line.Durations) && line.Durations[i] > 0 {
					durations[i] = line.Durations[i]
				} else if line.Duration != nil && *line.Duration > 0 {
					durations[i] = *line.Duration / float64(len(line.Notes))
				}
			}
			line.Duration = nil
			line.Durations = durations
			note("normalized durations on line %q", line.Text)
		}
	}
}

// FlattenLyrics renders the lyric sections as plain text in section order.
func FlattenLyrics(state *models.SongState) string {
	if state.Lyrics.IsInstrumental || len(state.Lyrics.Sections) == 0 {
		return ""
	}

	var b strings.Builder
	emitted := map[string]bool{}
	emit := func(section string) {
		lines, ok := state.Lyrics.Sections[section]
		if !ok || emitted[section] {
			return
		}
		emitted[section] = true
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%s]\n%s\n", section, strings.Join(lines, "\n"))
	}

	for _, section := range state.Arrangement.SectionOrder {
		emit(section)
	}
	leftovers := make([]string, 0, len(state.Lyrics.Sections))
	for section := range state.Lyrics.Sections {
		if !emitted[section] {
			leftovers = append(leftovers, section)
		}
	}
	sort.Strings(leftovers)
	for _, section := range leftovers {
		emit(section)
	}
	return b.String()
}

func timelineEnd(doc *models.SongDocument) float64 {
	var end float64
	for i := range doc.Tracks {
		for _, clip := range doc.Tracks[i].Clips {
			if e := clip.StartTime + clip.Duration; e > end {
				end = e
			}
		}
	}
	return end
}

func songName(state *models.SongState) string {
	idea := strings.TrimSpace(state.Request.SongIdea)
	if idea == "" {
		return DefaultName
	}
	words := strings.Fields(idea)
	if len(words) > 6 {
		words = words[:6]
	}
	name := strings.Join(words, " ")
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
