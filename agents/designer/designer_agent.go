// Package designer produces the album cover: a visual concept and, when an
// image backend is configured, a rendered cover.
package designer

import (
	"context"
	"fmt"
	"log"

	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/parse"
	"github.com/harmoniq-labs/songgen-agents-go/prompt"
)

// Agent is the designer stage.
type Agent struct {
	prompts *prompt.Builder
	concept llm.Oracle
	images  llm.ImageGenerator
}

// New creates the designer agent. concept is the image provider's own
// completion backend; the concept prompt and the render must come from the
// same provider, so the pipeline oracle is never used here. Both arguments
// may be nil: the stage then records a placeholder concept without a
// rendered cover.
func New(concept llm.Oracle, images llm.ImageGenerator) *Agent {
	return &Agent{prompts: prompt.NewBuilder(), concept: concept, images: images}
}

// Name returns the stage identifier.
func (a *Agent) Name() string { return "designer" }

// Run fills in state.AlbumArt. A missing image provider yields a
// placeholder concept with the omission recorded; a failed render is logged
// and leaves ImageURL empty.
func (a *Agent) Run(ctx context.Context, state models.SongState, catalog *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error) {
	art := models.AlbumArt{
		Concept: fmt.Sprintf("Album cover for %q", state.Request.SongIdea),
	}
	imagePrompt := defaultImagePrompt(&state)

	if a.concept == nil {
		log.Printf("🎨 DESIGNER: image provider unavailable, keeping placeholder concept")
		state = state.WithError("designer: image provider unavailable, using placeholder concept")
	} else if raw, err := a.concept.Complete(ctx, a.prompts.Designer(&state)); err != nil {
		log.Printf("⚠️  DESIGNER: concept backend failed, using default concept: %v", err)
		state = state.WithError(fmt.Sprintf("designer: concept backend failed: %v", err))
	} else if m := parse.Mapping(raw, nil); m != nil {
		art.Concept = parse.String(m, "concept", art.Concept)
		art.ColorPalette = parse.StringSlice(m, "colorPalette")
		art.Style = parse.String(m, "style", "")
		art.Mood = parse.String(m, "mood", "")
		imagePrompt = parse.String(m, "imagePrompt", imagePrompt)
	}

	if a.images == nil {
		log.Printf("🎨 DESIGNER: no image backend configured, keeping concept only")
		state = state.WithError("designer: album cover not rendered, image backend unavailable")
		state.AlbumArt = art
		return state, nil
	}

	url, err := a.images.GenerateImage(ctx, imagePrompt)
	if err != nil {
		log.Printf("⚠️  DESIGNER: image generation failed: %v", err)
		state = state.WithError(fmt.Sprintf("designer: image generation failed: %v", err))
	} else {
		art.ImageURL = url
		log.Printf("🎨 DESIGNER: album cover rendered")
	}

	state.AlbumArt = art
	return state, nil
}

func defaultImagePrompt(state *models.SongState) string {
	mood := state.Request.Mood
	if mood == "" {
		mood = "evocative"
	}
	return fmt.Sprintf("Album cover art, no text, %s mood: %s", mood, state.Request.SongIdea)
}
