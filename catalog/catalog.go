// Package catalog loads the read-only resource snapshot (instruments,
// samples, voices) consumed by the generation pipeline. Sources are
// pluggable so the HTTP layer can back them with its own sample library
// scanner; the built-in defaults make the pipeline self-contained.
package catalog

import (
	"log"

	"github.com/harmoniq-labs/songgen-agents-go/models"
)

// InstrumentSource provides the instrument and sample listings.
type InstrumentSource interface {
	Instruments() (map[string][]string, error)
	Samples() (map[string]map[string][]string, error)
	UserSamples() (map[string][]models.SampleMetadata, error)
}

// VoiceSource provides the singing-voice listing.
type VoiceSource interface {
	Voices() (map[string]models.Voice, error)
}

// Loader gathers a ResourceCatalog snapshot once per generation request.
type Loader struct {
	instruments InstrumentSource
	voices      VoiceSource
}

// NewLoader creates a loader over the given sources. Nil sources fall back
// to the built-in defaults.
func NewLoader(instruments InstrumentSource, voices VoiceSource) *Loader {
	if instruments == nil {
		instruments = DefaultInstrumentSource{}
	}
	if voices == nil {
		voices = DefaultVoiceSource{}
	}
	return &Loader{instruments: instruments, voices: voices}
}

// Load builds the snapshot. Failures in individual sources degrade to the
// built-in defaults rather than failing the request; the catalog must
// always be usable for fallback generation.
func (l *Loader) Load() *models.ResourceCatalog {
	cat := &models.ResourceCatalog{}

	if instruments, err := l.instruments.Instruments(); err == nil && len(instruments) > 0 {
		cat.Instruments = instruments
	} else {
		if err != nil {
			log.Printf("⚠️  instrument source failed, using defaults: %v", err)
		}
		cat.Instruments, _ = DefaultInstrumentSource{}.Instruments()
	}

	if samples, err := l.instruments.Samples(); err == nil {
		cat.Samples = samples
	} else {
		log.Printf("⚠️  sample source failed: %v", err)
		cat.Samples = map[string]map[string][]string{}
	}

	if userSamples, err := l.instruments.UserSamples(); err == nil {
		cat.UserSamples = userSamples
	} else {
		log.Printf("⚠️  user sample source failed: %v", err)
		cat.UserSamples = map[string][]models.SampleMetadata{}
	}

	if voices, err := l.voices.Voices(); err == nil && len(voices) > 0 {
		cat.Voices = voices
	} else {
		if err != nil {
			log.Printf("⚠️  voice source failed, using defaults: %v", err)
		}
		cat.Voices, _ = DefaultVoiceSource{}.Voices()
	}

	log.Printf("📚 Catalog loaded: %d categories, %d voices", len(cat.Instruments), len(cat.Voices))
	return cat
}

// DefaultInstrumentSource is the built-in instrument listing.
type DefaultInstrumentSource struct{}

// Instruments returns the built-in category → instrument mapping.
func (DefaultInstrumentSource) Instruments() (map[string][]string, error) {
	return map[string][]string{
		"keyboard":   {"grand piano", "electric piano", "organ", "synth lead", "synth pad"},
		"guitar":     {"acoustic guitar", "electric guitar", "clean guitar"},
		"bass":       {"electric bass", "synth bass", "upright bass"},
		"strings":    {"violin", "cello", "string ensemble"},
		"brass":      {"trumpet", "trombone", "brass section"},
		"percussion": {"acoustic drums", "electronic drums", "hand percussion"},
		"vocal":      {models.VocalsInstrument},
	}, nil
}

// Samples returns the built-in sample listing (empty by default).
func (DefaultInstrumentSource) Samples() (map[string]map[string][]string, error) {
	return map[string]map[string][]string{}, nil
}

// UserSamples returns the built-in user sample listing (empty by default).
func (DefaultInstrumentSource) UserSamples() (map[string][]models.SampleMetadata, error) {
	return map[string][]models.SampleMetadata{}, nil
}

// DefaultVoiceSource is the built-in voice listing.
type DefaultVoiceSource struct{}

// Voices returns the built-in voice mapping.
func (DefaultVoiceSource) Voices() (map[string]models.Voice, error) {
	return map[string]models.Voice{
		"voice_soprano_1": {Name: "Aria", Range: "soprano", Trained: true, Language: "en"},
		"voice_alto_1":    {Name: "June", Range: "alto", Trained: true, Language: "en"},
		"voice_tenor_1":   {Name: "Theo", Range: "tenor", Trained: true, Language: "en"},
		"voice_bass_1":    {Name: "Morgan", Range: "bass", Trained: false, Language: "en"},
	}, nil
}
