package arranger

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmoniq-labs/songgen-agents-go/models"
)

type stubOracle struct {
	reply string
	err   error
}

func (s *stubOracle) Complete(ctx context.Context, prompt string) (string, error) {
	return s.reply, s.err
}

func testCatalog() *models.ResourceCatalog {
	return &models.ResourceCatalog{
		Instruments: map[string][]string{
			"keyboard":   {"grand piano", "organ"},
			"bass":       {"electric bass"},
			"percussion": {"acoustic drums"},
			"vocal":      {models.VocalsInstrument},
		},
	}
}

func baseState(instrumental bool, styles ...string) models.SongState {
	state := models.NewSongState(models.GenerationRequest{
		SongIdea:       "test song",
		IsInstrumental: instrumental,
		StyleTags:      styles,
	})
	state.GlobalParams = models.GlobalParams{Tempo: 120, Key: "C major", TimeSignature: [2]int{4, 4}, DurationSeconds: 180}
	return state
}

func TestRunSubstitutesUnavailableInstrument(t *testing.T) {
	reply := `{
		"structure": {"verse 1": {"startTime": 0, "duration": 60, "bars": 16}},
		"sectionOrder": ["verse 1"],
		"plannedTracks": [
			{"name": "wurlitzer", "instrument": "wurlitzer", "category": "keyboard", "role": "harmonic", "sections": ["verse 1"], "pan": 0, "volume": 0.8}
		]
	}`
	agent := New()
	got, err := agent.Run(context.Background(), baseState(false), testCatalog(), &stubOracle{reply: reply})
	require.NoError(t, err)

	require.Len(t, got.Arrangement.PlannedTracks, 1)
	assert.Equal(t, "grand piano", got.Arrangement.PlannedTracks[0].Instrument)
	assert.Equal(t, "grand piano", got.Arrangement.PlannedTracks[0].Name)
}

func TestRunDropsTrackWithoutSubstitute(t *testing.T) {
	reply := `{
		"structure": {"verse 1": {"startTime": 0, "duration": 60, "bars": 16}},
		"sectionOrder": ["verse 1"],
		"plannedTracks": [
			{"name": "didgeridoo", "instrument": "didgeridoo", "category": "winds", "role": "textural", "sections": ["verse 1"]},
			{"name": "piano", "instrument": "grand piano", "category": "keyboard", "role": "harmonic", "sections": ["verse 1"]}
		]
	}`
	agent := New()
	got, err := agent.Run(context.Background(), baseState(false), testCatalog(), &stubOracle{reply: reply})
	require.NoError(t, err)

	require.Len(t, got.Arrangement.PlannedTracks, 1)
	assert.Equal(t, "grand piano", got.Arrangement.PlannedTracks[0].Instrument)
}

func TestRunDropsVocalTracksForInstrumentalRequest(t *testing.T) {
	reply := `{
		"structure": {"verse 1": {"startTime": 0, "duration": 60, "bars": 16}},
		"sectionOrder": ["verse 1"],
		"plannedTracks": [
			{"name": "lead vocals", "instrument": "vocals", "category": "vocal", "role": "melodic", "sections": ["verse 1"]},
			{"name": "piano", "instrument": "grand piano", "category": "keyboard", "role": "harmonic", "sections": ["verse 1"]}
		]
	}`
	agent := New()
	got, err := agent.Run(context.Background(), baseState(true), testCatalog(), &stubOracle{reply: reply})
	require.NoError(t, err)

	require.Len(t, got.Arrangement.PlannedTracks, 1)
	for _, track := range got.Arrangement.PlannedTracks {
		assert.NotEqual(t, models.VocalsInstrument, track.Instrument)
		assert.NotEqual(t, "vocal", track.Category)
	}
}

func TestRunRescalesOvershootingTimeline(t *testing.T) {
	reply := `{
		"structure": {
			"verse 1": {"startTime": 0, "duration": 200, "bars": 50},
			"chorus": {"startTime": 200, "duration": 160, "bars": 40}
		},
		"sectionOrder": ["verse 1", "chorus"],
		"plannedTracks": [
			{"name": "piano", "instrument": "grand piano", "category": "keyboard", "role": "harmonic", "sections": ["verse 1", "chorus"]}
		]
	}`
	agent := New()
	got, err := agent.Run(context.Background(), baseState(false), testCatalog(), &stubOracle{reply: reply})
	require.NoError(t, err)

	var end float64
	for _, s := range got.Arrangement.Structure {
		if e := s.StartTime + s.Duration; e > end {
			end = e
		}
	}
	assert.InDelta(t, 180, end, 0.5)
}

func TestRunKeepsTimelineWithinSlack(t *testing.T) {
	reply := `{
		"structure": {"verse 1": {"startTime": 0, "duration": 185, "bars": 46}},
		"sectionOrder": ["verse 1"],
		"plannedTracks": [
			{"name": "piano", "instrument": "grand piano", "category": "keyboard", "role": "harmonic", "sections": ["verse 1"]}
		]
	}`
	agent := New()
	got, err := agent.Run(context.Background(), baseState(false), testCatalog(), &stubOracle{reply: reply})
	require.NoError(t, err)
	assert.Equal(t, 185.0, got.Arrangement.Structure["verse 1"].Duration)
}

func TestRunFallbackArrangement(t *testing.T) {
	tests := []struct {
		name         string
		instrumental bool
		styles       []string
		wantVocals   bool
		wantRhythm   bool
	}{
		{"vocal pop", false, []string{"pop"}, true, true},
		{"instrumental ambient", true, []string{"ambient"}, false, false},
		{"vocal ambient", false, nil, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agent := New()
			got, err := agent.Run(context.Background(), baseState(tt.instrumental, tt.styles...), testCatalog(),
				&stubOracle{err: errors.New("oracle down")})
			require.NoError(t, err)

			arr := got.Arrangement
			assert.GreaterOrEqual(t, len(arr.Structure), 4)
			assert.LessOrEqual(t, len(arr.Structure), 8)
			assert.NotEmpty(t, got.Errors)

			hasVocals, hasBass := false, false
			for _, track := range arr.PlannedTracks {
				if track.Instrument == models.VocalsInstrument {
					hasVocals = true
				}
				if track.Category == "bass" {
					hasBass = true
				}
			}
			assert.Equal(t, tt.wantVocals, hasVocals)
			assert.Equal(t, tt.wantRhythm, hasBass)

			// Sections tile the target duration in order.
			var end float64
			for _, name := range arr.SectionOrder {
				section, ok := arr.Structure[name]
				require.True(t, ok, "ordered section %q missing from structure", name)
				assert.InDelta(t, end, section.StartTime, 0.01)
				end = section.StartTime + section.Duration
			}
			assert.InDelta(t, 180, end, 0.5)
		})
	}
}

func TestOrderByStart(t *testing.T) {
	structure := map[string]models.Section{}
	for i := 0; i < 5; i++ {
		structure[fmt.Sprintf("s%d", 4-i)] = models.Section{StartTime: float64((4 - i) * 10)}
	}
	assert.Equal(t, []string{"s0", "s1", "s2", "s3", "s4"}, orderByStart(structure))
}
