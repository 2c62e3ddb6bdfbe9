package models

// Lyrics modes accepted in a GenerationRequest.
const (
	LyricsModeGenerate     = "generate"
	LyricsModeCustom       = "custom"
	LyricsModeInstrumental = "instrumental"
)

// Duration preferences and their second targets.
const (
	DurationShort  = "short"
	DurationMedium = "medium"
	DurationLong   = "long"
)

// Track roles in an arrangement plan.
const (
	RoleMelodic  = "melodic"
	RoleHarmonic = "harmonic"
	RoleRhythmic = "rhythmic"
	RoleTextural = "textural"
)

// Default restart budgets.
const (
	DefaultMaxRevisions  = 1
	DefaultMaxQARestarts = 2
)

// GenerationRequest is the immutable caller-supplied description of the song
// to generate.
type GenerationRequest struct {
	SongIdea       string   `json:"songIdea"`
	StyleTags      []string `json:"styleTags,omitempty"`
	CustomStyle    string   `json:"customStyle,omitempty"`
	LyricsMode     string   `json:"lyricsMode,omitempty"`
	CustomLyrics   string   `json:"customLyrics,omitempty"`
	IsInstrumental bool     `json:"isInstrumental"`
	Duration       string   `json:"duration,omitempty"` // short | medium | long
	PreferredKey   string   `json:"preferredKey,omitempty"`
	Mood           string   `json:"mood,omitempty"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
}

// GlobalParams are the song-wide musical parameters chosen by the composer.
type GlobalParams struct {
	Tempo           int    `json:"tempo"`
	Key             string `json:"key"`
	TimeSignature   [2]int `json:"timeSignature"`
	DurationSeconds int    `json:"durationSeconds"`
	EstimatedBars   int    `json:"estimatedBars"`
}

// Section is one named span of the song timeline.
type Section struct {
	StartTime float64 `json:"startTime"`
	Duration  float64 `json:"duration"`
	Bars      int     `json:"bars"`
}

// PlannedTrack is the arranger's plan for one track before any notes exist.
type PlannedTrack struct {
	Name       string   `json:"name"`
	Instrument string   `json:"instrument"`
	Category   string   `json:"category"`
	Role       string   `json:"role"`
	Sections   []string `json:"sections"`
	Pan        float64  `json:"pan"`
	Volume     float64  `json:"volume"`
	VoiceID    string   `json:"voiceId,omitempty"`
}

// Arrangement is the section timeline plus the planned track list.
type Arrangement struct {
	Structure     map[string]Section `json:"structure"`
	SectionOrder  []string           `json:"sectionOrder"`
	PlannedTracks []PlannedTrack     `json:"plannedTracks"`
}

// Lyrics holds the lyricist output keyed by section name.
type Lyrics struct {
	Sections       map[string][]string `json:"sections"`
	IsInstrumental bool                `json:"isInstrumental"`
	Theme          string              `json:"theme,omitempty"`
	Mood           string              `json:"mood,omitempty"`
}

// EffectsConfig carries the effects agent's per-track and per-clip overrides.
type EffectsConfig struct {
	TrackEffects map[string]Effects `json:"trackEffects"`
	ClipEffects  map[string]Effects `json:"clipEffects"`
}

// AlbumArt is the designer output.
type AlbumArt struct {
	Concept      string   `json:"concept"`
	ColorPalette []string `json:"colorPalette,omitempty"`
	Style        string   `json:"style,omitempty"`
	Mood         string   `json:"mood,omitempty"`
	ImageURL     string   `json:"imageUrl,omitempty"`
}

// SongState is the working record threaded through the pipeline. Stages
// receive it by value and return an updated copy; the controller is the
// single writer for the lifetime of a run.
type SongState struct {
	Request GenerationRequest

	GlobalParams       GlobalParams
	Arrangement        Arrangement
	Lyrics             Lyrics
	VocalTracks        []Track
	InstrumentalTracks []Track
	EffectsConfig      EffectsConfig
	AlbumArt           AlbumArt

	ReviewNotes   []string
	Errors        []string
	QAFeedback    []string
	QACorrections []string

	Recommendation string // reviewer verdict: continue | revise

	QARestartCount int
	MaxQARestarts  int
	RevisionCount  int
	MaxRevisions   int

	CurrentAgent  string
	PreviousAgent string

	IsReadyForExport  bool
	FinalSongDocument *SongDocument
}

// NewSongState returns an empty state for the given request with default
// restart budgets.
func NewSongState(req GenerationRequest) SongState {
	return SongState{
		Request:       req,
		MaxQARestarts: DefaultMaxQARestarts,
		MaxRevisions:  DefaultMaxRevisions,
	}
}

// WithError returns the state with a diagnostics entry appended.
func (s SongState) WithError(msg string) SongState {
	errs := make([]string, 0, len(s.Errors)+1)
	errs = append(errs, s.Errors...)
	errs = append(errs, msg)
	s.Errors = errs
	return s
}

// AtAgent returns the state positioned at the named stage.
func (s SongState) AtAgent(name string) SongState {
	s.PreviousAgent = s.CurrentAgent
	s.CurrentAgent = name
	return s
}

// AllTracks returns vocal and instrumental tracks in export order.
func (s *SongState) AllTracks() []Track {
	out := make([]Track, 0, len(s.VocalTracks)+len(s.InstrumentalTracks))
	out = append(out, s.VocalTracks...)
	out = append(out, s.InstrumentalTracks...)
	return out
}

// DurationTarget maps the duration preference to concrete seconds.
func (r *GenerationRequest) DurationTarget() int {
	switch r.Duration {
	case DurationShort:
		return 90
	case DurationLong:
		return 300
	default:
		return 180
	}
}

// HasStyle reports whether any of the request's style tags (or the custom
// style text) contains one of the given keywords.
func (r *GenerationRequest) HasStyle(keywords ...string) bool {
	for _, kw := range keywords {
		for _, tag := range r.StyleTags {
			if containsFold(tag, kw) {
				return true
			}
		}
		if r.CustomStyle != "" && containsFold(r.CustomStyle, kw) {
			return true
		}
	}
	return false
}
