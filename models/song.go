package models

import (
	"time"

	"github.com/google/uuid"
)

// Clip types understood by the DAW frontend.
const (
	ClipTypeSynth  = "synth"
	ClipTypeLyrics = "lyrics"
)

// Sentinel instrument name for vocal tracks.
const VocalsInstrument = "vocals"

// Effects holds the three mix effect sends in [0,1].
type Effects struct {
	Reverb     float64 `json:"reverb"`
	Delay      float64 `json:"delay"`
	Distortion float64 `json:"distortion"`
}

// LyricLine maps one lyric fragment to its sung notes. Exactly one of
// Duration (single note) or Durations (one per note) is set.
type LyricLine struct {
	Text       string    `json:"text"`
	Notes      []string  `json:"notes"`
	Start      float64   `json:"start"`
	Duration   *float64  `json:"duration,omitempty"`
	Durations  []float64 `json:"durations,omitempty"`
	Velocities []int     `json:"velocities,omitempty"`
	Syllables  []string  `json:"syllables,omitempty"`
	Phonemes   []string  `json:"phonemes,omitempty"`
}

// VoiceLine is one singing voice within a lyrics clip.
type VoiceLine struct {
	VoiceID string      `json:"voice_id"`
	Lyrics  []LyricLine `json:"lyrics"`
}

// Clip is the smallest timed unit of musical content. A "synth" clip carries
// Notes directly; a "lyrics" clip carries Voices and never a bare Notes array.
type Clip struct {
	ID         string      `json:"id"`
	TrackID    string      `json:"trackId"`
	StartTime  float64     `json:"startTime"`
	Duration   float64     `json:"duration"`
	Type       string      `json:"type"`
	Instrument string      `json:"instrument"`
	Volume     float64     `json:"volume"`
	Effects    Effects     `json:"effects"`
	Notes      []string    `json:"notes,omitempty"`
	Voices     []VoiceLine `json:"voices,omitempty"`
}

// Track is one mixer lane of the exported song.
type Track struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Instrument string  `json:"instrument"`
	Category   string  `json:"category,omitempty"`
	Volume     float64 `json:"volume"`
	Pan        float64 `json:"pan"`
	Muted      bool    `json:"muted"`
	Solo       bool    `json:"solo"`
	Clips      []Clip  `json:"clips"`
	Effects    Effects `json:"effects"`
}

// SongDocument is the final schema-validated song consumed by the DAW frontend.
type SongDocument struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Tempo         int     `json:"tempo"`
	TimeSignature [2]int  `json:"timeSignature"`
	Key           string  `json:"key"`
	Duration      float64 `json:"duration"`
	Tracks        []Track `json:"tracks"`
	Lyrics        string  `json:"lyrics,omitempty"`
	AlbumCover    string  `json:"albumCover,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// NewID returns a fresh unique identifier for tracks, clips and documents.
func NewID() string {
	return uuid.NewString()
}

// NowISO returns the current time formatted the way the frontend expects.
func NowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// IsVocal reports whether the track is a vocal lane.
func (t *Track) IsVocal() bool {
	return t.Instrument == VocalsInstrument || t.Category == "vocal"
}
