package designer

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

type stubImages struct {
	url     string
	err     error
	prompts []string
}

func (s *stubImages) GenerateImage(ctx context.Context, prompt string) (string, error) {
	s.prompts = append(s.prompts, prompt)
	return s.url, s.err
}

func artState() models.SongState {
	state := models.NewSongState(models.GenerationRequest{SongIdea: "a rainy city night", Mood: "wistful"})
	state.GlobalParams = models.GlobalParams{Key: "A minor"}
	return state
}

func TestRunRendersCoverFromConcept(t *testing.T) {
	images := &stubImages{url: "https://img.example/cover.png"}
	concept := &stubOracle{reply: `{"concept": "neon reflections on wet asphalt", "colorPalette": ["teal", "amber"], "style": "impressionist", "mood": "wistful", "imagePrompt": "impressionist neon city rain"}`}

	agent := New(concept, images)
	got, err := agent.Run(context.Background(), artState(), &models.ResourceCatalog{}, &stubOracle{})
	require.NoError(t, err)

	assert.Equal(t, "neon reflections on wet asphalt", got.AlbumArt.Concept)
	assert.Equal(t, "https://img.example/cover.png", got.AlbumArt.ImageURL)
	require.Len(t, images.prompts, 1)
	assert.Equal(t, "impressionist neon city rain", images.prompts[0])
}

func TestRunConceptNeverUsesPipelineOracle(t *testing.T) {
	// The concept prompt goes to the image provider's completion backend
	// only, whatever provider drives the rest of the pipeline.
	concept := &stubOracle{reply: `{"concept": "c"}`}
	pipeline := &stubOracle{reply: `{"concept": "wrong backend"}`}

	agent := New(concept, &stubImages{url: "https://img.example/x.png"})
	got, err := agent.Run(context.Background(), artState(), &models.ResourceCatalog{}, pipeline)
	require.NoError(t, err)

	assert.Equal(t, 1, concept.calls)
	assert.Zero(t, pipeline.calls)
	assert.Equal(t, "c", got.AlbumArt.Concept)
}

func TestRunNoProviderUsesPlaceholderConcept(t *testing.T) {
	pipeline := &stubOracle{reply: `{"concept": "wrong backend"}`}

	agent := New(nil, nil)
	got, err := agent.Run(context.Background(), artState(), &models.ResourceCatalog{}, pipeline)
	require.NoError(t, err)

	assert.Zero(t, pipeline.calls, "no image provider means no concept call at all")
	assert.Equal(t, `Album cover for "a rainy city night"`, got.AlbumArt.Concept)
	assert.Empty(t, got.AlbumArt.ImageURL)
	assert.NotEmpty(t, got.Errors, "the omission is recorded")
}

func TestRunImageFailureKeepsConcept(t *testing.T) {
	images := &stubImages{err: errors.New("billing hard limit")}
	agent := New(&stubOracle{reply: `{"concept": "c"}`}, images)

	got, err := agent.Run(context.Background(), artState(), &models.ResourceCatalog{}, &stubOracle{})
	require.NoError(t, err)
	assert.Equal(t, "c", got.AlbumArt.Concept)
	assert.Empty(t, got.AlbumArt.ImageURL)
	assert.NotEmpty(t, got.Errors)
}

func TestRunConceptFailureStillAttemptsRender(t *testing.T) {
	images := &stubImages{url: "https://img.example/fallback.png"}
	agent := New(&stubOracle{err: errors.New("down")}, images)

	got, err := agent.Run(context.Background(), artState(), &models.ResourceCatalog{}, &stubOracle{})
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/fallback.png", got.AlbumArt.ImageURL)
	require.Len(t, images.prompts, 1)
	assert.Contains(t, images.prompts[0], "a rainy city night")
}
