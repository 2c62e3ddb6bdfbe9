package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDurationTarget(t *testing.T) {
	tests := []struct {
		duration string
		want     int
	}{
		{DurationShort, 90},
		{DurationMedium, 180},
		{DurationLong, 300},
		{"", 180},
		{"unknown", 180},
	}
	for _, tt := range tests {
		req := GenerationRequest{Duration: tt.duration}
		assert.Equal(t, tt.want, req.DurationTarget(), "duration %q", tt.duration)
	}
}

func TestHasStyle(t *testing.T) {
	req := GenerationRequest{StyleTags: []string{"Indie Rock"}, CustomStyle: "dreamy shoegaze"}
	assert.True(t, req.HasStyle("rock"))
	assert.True(t, req.HasStyle("shoegaze"))
	assert.True(t, req.HasStyle("edm", "rock"))
	assert.False(t, req.HasStyle("jazz"))
}

func TestWithErrorDoesNotShareBackingArray(t *testing.T) {
	base := NewSongState(GenerationRequest{SongIdea: "x"})
	withOne := base.WithError("first")
	withTwo := withOne.WithError("second")
	withOther := withOne.WithError("other")

	assert.Empty(t, base.Errors)
	assert.Equal(t, []string{"first"}, withOne.Errors)
	assert.Equal(t, []string{"first", "second"}, withTwo.Errors)
	assert.Equal(t, []string{"first", "other"}, withOther.Errors)
}

func TestAtAgentTracksPrevious(t *testing.T) {
	s := NewSongState(GenerationRequest{})
	s = s.AtAgent("composer")
	s = s.AtAgent("arranger")
	assert.Equal(t, "arranger", s.CurrentAgent)
	assert.Equal(t, "composer", s.PreviousAgent)
}

func TestNewSongStateDefaults(t *testing.T) {
	s := NewSongState(GenerationRequest{})
	assert.Equal(t, DefaultMaxRevisions, s.MaxRevisions)
	assert.Equal(t, DefaultMaxQARestarts, s.MaxQARestarts)
}
