package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testCatalog() *ResourceCatalog {
	return &ResourceCatalog{
		Instruments: map[string][]string{
			"keyboard": {"organ", "grand piano"},
			"bass":     {"electric bass"},
			"vocal":    {VocalsInstrument},
		},
		Voices: map[string]Voice{
			"voice_alto_1": {Name: "June", Range: "alto"},
			"voice_bass_1": {Name: "Morgan", Range: "bass"},
		},
	}
}

func TestHasInstrument(t *testing.T) {
	cat := testCatalog()
	assert.True(t, cat.HasInstrument("organ"))
	assert.False(t, cat.HasInstrument("theremin"))
	// The vocals sentinel is always available even without a vocal category.
	assert.True(t, (&ResourceCatalog{}).HasInstrument(VocalsInstrument))
}

func TestSubstitutePicksAlphabeticallyFirst(t *testing.T) {
	cat := testCatalog()

	got, ok := cat.Substitute("keyboard")
	assert.True(t, ok)
	assert.Equal(t, "grand piano", got)

	_, ok = cat.Substitute("brass")
	assert.False(t, ok)
}

func TestCategoryOf(t *testing.T) {
	cat := testCatalog()
	assert.Equal(t, "bass", cat.CategoryOf("electric bass"))
	assert.Equal(t, "", cat.CategoryOf("theremin"))
}

func TestVoiceIDsSorted(t *testing.T) {
	cat := testCatalog()
	assert.Equal(t, []string{"voice_alto_1", "voice_bass_1"}, cat.VoiceIDs())
	assert.True(t, cat.HasVoice("voice_alto_1"))
	assert.False(t, cat.HasVoice("voice_soprano_9"))
}
