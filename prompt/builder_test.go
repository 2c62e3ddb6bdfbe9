package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harmoniq-labs/songgen-agents-go/models"
)

func TestFilterFeedbackDropsVocalLinesForInstrumental(t *testing.T) {
	feedback := []string{
		"the vocal harmonies feel weak",
		"the drums are too quiet",
		"rewrite the lyrics in the bridge",
	}

	kept := FilterFeedback(feedback, true)
	assert.Equal(t, []string{"the drums are too quiet"}, kept)

	// Vocal runs keep everything.
	assert.Equal(t, feedback, FilterFeedback(feedback, false))
}

func TestFeedbackSectionOnlyOnRestart(t *testing.T) {
	b := NewBuilder()
	state := models.NewSongState(models.GenerationRequest{SongIdea: "x"})
	state.QAFeedback = []string{"the chorus drags"}

	assert.Empty(t, b.feedbackSection(&state), "first attempts carry no feedback block")

	state.QARestartCount = 1
	section := b.feedbackSection(&state)
	assert.Contains(t, section, "the chorus drags")
	assert.Contains(t, section, "retry attempt 1")
}

func TestPromptsDemandJSONOnly(t *testing.T) {
	b := NewBuilder()
	state := models.NewSongState(models.GenerationRequest{SongIdea: "a rainy city night", StyleTags: []string{"jazz"}})
	state.GlobalParams = models.GlobalParams{Tempo: 100, Key: "A minor", DurationSeconds: 90, EstimatedBars: 36}
	catalog := &models.ResourceCatalog{Instruments: map[string][]string{"keyboard": {"grand piano"}}}

	prompts := []string{
		b.Composer(&state),
		b.Arranger(&state, catalog),
		b.Lyricist(&state, []string{"verse 1"}, 10),
		b.EffectsPrompt(&state, []string{"- id t1: piano"}),
		b.Designer(&state),
		b.QA(&state, "summary", nil),
	}
	for i, p := range prompts {
		assert.Contains(t, p, "ONLY a JSON object", "prompt %d", i)
	}
}

func TestVocalistPromptCoversAllSections(t *testing.T) {
	b := NewBuilder()
	state := models.NewSongState(models.GenerationRequest{SongIdea: "x"})
	state.GlobalParams = models.GlobalParams{Tempo: 120, Key: "C major"}

	track := &models.PlannedTrack{Name: "lead vocals"}
	lines := map[string][]string{
		"verse 1": {"first line", "second line"},
		"chorus":  {"chorus line"},
	}

	p := b.Vocalist(&state, track, []string{"verse 1", "chorus"}, lines, []string{"C4", "D4"})
	assert.Contains(t, p, "[verse 1]")
	assert.Contains(t, p, "[chorus]")
	assert.Contains(t, p, "chorus line")
	assert.Contains(t, p, "ONLY a JSON object")
}

func TestInstrumentalistPromptListsEveryTrack(t *testing.T) {
	b := NewBuilder()
	state := models.NewSongState(models.GenerationRequest{SongIdea: "x"})
	state.GlobalParams = models.GlobalParams{Tempo: 120, Key: "C major"}

	p := b.Instrumentalist(&state, []string{
		"- piano: grand piano (keyboard, harmonic role), sections: verse 1, around octave 4",
		"- bass: electric bass (bass, rhythmic role), sections: verse 1, around octave 2",
	})
	assert.Contains(t, p, "piano")
	assert.Contains(t, p, "electric bass")
	assert.Contains(t, p, `"tracks"`)
	assert.Contains(t, p, "ONLY a JSON object")
}

func TestArrangerPromptListsUserSamples(t *testing.T) {
	b := NewBuilder()
	state := models.NewSongState(models.GenerationRequest{SongIdea: "x"})
	catalog := &models.ResourceCatalog{
		Instruments: map[string][]string{"keyboard": {"grand piano"}},
		UserSamples: map[string][]models.SampleMetadata{
			"drums": {{Name: "lofi kit", BPM: 84, Key: "C", Tags: []string{"dusty"}}},
		},
	}

	p := b.Arranger(&state, catalog)
	assert.Contains(t, p, "lofi kit")
	assert.Contains(t, p, "84 bpm")
	assert.Contains(t, p, "dusty")
}

func TestInstrumentalArrangerPromptForbidsVocals(t *testing.T) {
	b := NewBuilder()
	state := models.NewSongState(models.GenerationRequest{SongIdea: "x", IsInstrumental: true})
	p := b.Arranger(&state, &models.ResourceCatalog{})
	assert.True(t, strings.Contains(p, "INSTRUMENTAL"))
}
