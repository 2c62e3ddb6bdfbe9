package coordination

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harmoniq-labs/songgen-agents-go/models"
)

func TestSessionStoreConsumeOnce(t *testing.T) {
	store := NewSessionStore()
	state := models.NewSongState(models.GenerationRequest{SongIdea: "x"})

	id := store.Suspend(state)
	require.Equal(t, 1, store.Len())

	got, ok := store.Take(id)
	require.True(t, ok)
	assert.Equal(t, "x", got.Request.SongIdea)

	_, ok = store.Take(id)
	assert.False(t, ok, "a session is decided at most once")
	assert.Zero(t, store.Len())
}

func TestSessionStoreExpiresAbandonedSessions(t *testing.T) {
	store := NewSessionStore()
	clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	old := store.Suspend(models.NewSongState(models.GenerationRequest{SongIdea: "old"}))

	clock = clock.Add(sessionTTL + time.Minute)
	fresh := store.Suspend(models.NewSongState(models.GenerationRequest{SongIdea: "fresh"}))

	_, ok := store.Take(old)
	assert.False(t, ok, "expired sessions are not decidable")

	got, ok := store.Take(fresh)
	require.True(t, ok)
	assert.Equal(t, "fresh", got.Request.SongIdea)
}

func TestSessionStoreLenSkipsExpired(t *testing.T) {
	store := NewSessionStore()
	clock := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	store.Suspend(models.NewSongState(models.GenerationRequest{SongIdea: "a"}))
	store.Suspend(models.NewSongState(models.GenerationRequest{SongIdea: "b"}))
	require.Equal(t, 2, store.Len())

	clock = clock.Add(sessionTTL + time.Second)
	assert.Zero(t, store.Len())
}
