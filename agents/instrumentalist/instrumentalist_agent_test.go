package instrumentalist

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmoniq-labs/songgen-agents-go/models"
)

type stubOracle struct {
	reply string
	err   error
	calls int
}

func (s *stubOracle) Complete(ctx context.Context, prompt string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func instrumentalState() models.SongState {
	state := models.NewSongState(models.GenerationRequest{SongIdea: "x"})
	state.GlobalParams = models.GlobalParams{Tempo: 120, Key: "C major", DurationSeconds: 120}
	state.Arrangement = models.Arrangement{
		Structure: map[string]models.Section{
			"verse 1": {StartTime: 0, Duration: 60, Bars: 16},
			"chorus":  {StartTime: 60, Duration: 60, Bars: 16},
		},
		SectionOrder: []string{"verse 1", "chorus"},
		PlannedTracks: []models.PlannedTrack{
			{Name: "piano", Instrument: "grand piano", Category: "keyboard", Role: "harmonic", Sections: []string{"verse 1", "chorus"}, Volume: 0.8},
			{Name: "lead vocals", Instrument: models.VocalsInstrument, Category: "vocal", Role: "melodic", Sections: []string{"verse 1"}},
		},
	}
	return state
}

func TestRunSkipsVocalTracks(t *testing.T) {
	agent := New()
	got, err := agent.Run(context.Background(), instrumentalState(), &models.ResourceCatalog{}, &stubOracle{err: errors.New("down")})
	require.NoError(t, err)

	require.Len(t, got.InstrumentalTracks, 1)
	assert.Equal(t, "grand piano", got.InstrumentalTracks[0].Instrument)
}

func TestRunEveryClipIsSynthWithNotes(t *testing.T) {
	agent := New()
	oracle := &stubOracle{reply: `{"sections": {
		"verse 1": {"notes": ["C4", "E4", "G4"]},
		"chorus": {"notes": ["F4", "A4", "C5"]}
	}}`}

	got, err := agent.Run(context.Background(), instrumentalState(), &models.ResourceCatalog{}, oracle)
	require.NoError(t, err)
	require.Len(t, got.InstrumentalTracks, 1)

	track := got.InstrumentalTracks[0]
	require.Len(t, track.Clips, 2)
	for _, clip := range track.Clips {
		assert.Equal(t, models.ClipTypeSynth, clip.Type)
		assert.NotEmpty(t, clip.Notes)
		assert.Empty(t, clip.Voices)
		assert.Equal(t, track.ID, clip.TrackID)
	}
}

func TestRunHoistsNestedMusicalContent(t *testing.T) {
	// Oracle wraps the notes one level deeper than the schema allows.
	oracle := &stubOracle{reply: `{"sections": {
		"verse 1": {"musicalContent": {"notes": ["D4", "F4", "A4"]}},
		"chorus": ["G4", "B4", "D5"]
	}}`}

	agent := New()
	got, err := agent.Run(context.Background(), instrumentalState(), &models.ResourceCatalog{}, oracle)
	require.NoError(t, err)

	track := got.InstrumentalTracks[0]
	require.Len(t, track.Clips, 2)
	assert.Equal(t, []string{"D4", "F4", "A4"}, track.Clips[0].Notes)
	assert.Equal(t, []string{"G4", "B4", "D5"}, track.Clips[1].Notes)
}

func TestRunHoistsNoteObjects(t *testing.T) {
	oracle := &stubOracle{reply: `{"sections": {
		"verse 1": {"notes": [{"pitch": "C4", "duration": 1}, {"pitch": "E4", "duration": 1}]}
	}}`}

	state := instrumentalState()
	state.Arrangement.PlannedTracks[0].Sections = []string{"verse 1"}

	agent := New()
	got, err := agent.Run(context.Background(), state, &models.ResourceCatalog{}, oracle)
	require.NoError(t, err)
	assert.Equal(t, []string{"C4", "E4"}, got.InstrumentalTracks[0].Clips[0].Notes)
}

func TestRunOneCompletionCoversAllTracks(t *testing.T) {
	state := instrumentalState()
	state.Arrangement.PlannedTracks = []models.PlannedTrack{
		{Name: "piano", Instrument: "grand piano", Category: "keyboard", Role: "harmonic", Sections: []string{"verse 1"}},
		{Name: "bass", Instrument: "electric bass", Category: "bass", Role: "rhythmic", Sections: []string{"verse 1"}},
		{Name: "drums", Instrument: "acoustic drums", Category: "percussion", Role: "rhythmic", Sections: []string{"chorus"}},
	}
	oracle := &stubOracle{reply: `{"tracks": {
		"piano": {"sections": {"verse 1": {"notes": ["C4", "E4", "G4"]}}},
		"bass": {"sections": {"verse 1": {"notes": ["C2", "G2"]}}},
		"drums": {"sections": {"chorus": {"notes": ["C2", "D2"]}}}
	}}`}

	agent := New()
	got, err := agent.Run(context.Background(), state, &models.ResourceCatalog{}, oracle)
	require.NoError(t, err)

	assert.Equal(t, 1, oracle.calls, "one completion covers every track")
	require.Len(t, got.InstrumentalTracks, 3)
	assert.Equal(t, []string{"C4", "E4", "G4"}, got.InstrumentalTracks[0].Clips[0].Notes)
	assert.Equal(t, []string{"C2", "G2"}, got.InstrumentalTracks[1].Clips[0].Notes)
	assert.Equal(t, []string{"C2", "D2"}, got.InstrumentalTracks[2].Clips[0].Notes)
}

func TestRunOracleSkippedTrackGetsDefaults(t *testing.T) {
	state := instrumentalState()
	state.Arrangement.PlannedTracks = []models.PlannedTrack{
		{Name: "piano", Instrument: "grand piano", Category: "keyboard", Role: "harmonic", Sections: []string{"verse 1"}},
		{Name: "bass", Instrument: "electric bass", Category: "bass", Role: "rhythmic", Sections: []string{"verse 1"}},
	}
	oracle := &stubOracle{reply: `{"tracks": {
		"piano": {"sections": {"verse 1": {"notes": ["C4"]}}}
	}}`}

	agent := New()
	got, err := agent.Run(context.Background(), state, &models.ResourceCatalog{}, oracle)
	require.NoError(t, err)
	require.Len(t, got.InstrumentalTracks, 2)

	assert.Equal(t, []string{"C4"}, got.InstrumentalTracks[0].Clips[0].Notes)
	assert.NotEmpty(t, got.InstrumentalTracks[1].Clips[0].Notes, "skipped tracks get default patterns")
}

func TestRunDefaultPatternsOnOracleFailure(t *testing.T) {
	state := instrumentalState()
	state.Arrangement.PlannedTracks = []models.PlannedTrack{
		{Name: "drums", Instrument: "acoustic drums", Category: "percussion", Role: "rhythmic", Sections: []string{"verse 1"}},
		{Name: "bass", Instrument: "electric bass", Category: "bass", Role: "rhythmic", Sections: []string{"verse 1"}},
	}

	agent := New()
	got, err := agent.Run(context.Background(), state, &models.ResourceCatalog{}, &stubOracle{err: errors.New("down")})
	require.NoError(t, err)
	require.Len(t, got.InstrumentalTracks, 2)

	drums := got.InstrumentalTracks[0].Clips[0].Notes
	assert.Contains(t, drums, "C2")
	assert.Contains(t, drums, "D2")

	bass := got.InstrumentalTracks[1].Clips[0].Notes
	assert.NotEmpty(t, bass)
	for _, n := range bass {
		assert.Contains(t, n, "2", "bass stays in the low register: %s", n)
	}
}

func TestHoistNotesShapes(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"bare array", []any{"C4", "D4"}, []string{"C4", "D4"}},
		{"notes object", map[string]any{"notes": []any{"E4"}}, []string{"E4"}},
		{"double nested", map[string]any{"clip": map[string]any{"notes": []any{"F4"}}}, []string{"F4"}},
		{"empty", map[string]any{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hoistNotes(tt.in))
		})
	}
}
