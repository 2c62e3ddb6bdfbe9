// Package lyricist writes section-keyed lyrics, or marks the song
// instrumental and stays out of the way.
package lyricist

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/music"
	"github.com/harmoniq-labs/songgen-agents-go/parse"
	"github.com/harmoniq-labs/songgen-agents-go/prompt"
)

// Agent is the lyricist stage.
type Agent struct {
	prompts *prompt.Builder
}

// New creates the lyricist agent.
func New() *Agent {
	return &Agent{prompts: prompt.NewBuilder()}
}

// Name returns the stage identifier.
func (a *Agent) Name() string { return "lyricist" }

// Run fills in state.Lyrics. Instrumental requests short-circuit before any
// oracle call. Custom lyrics are distributed across the vocal sections
// verbatim; generated lyrics come from the oracle with placeholder patching
// for any section it missed.
func (a *Agent) Run(ctx context.Context, state models.SongState, catalog *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error) {
	if state.Request.IsInstrumental || state.Request.LyricsMode == models.LyricsModeInstrumental {
		log.Printf("🎸 LYRICIST: instrumental song, skipping lyrics")
		state.Lyrics = models.Lyrics{IsInstrumental: true}
		return state, nil
	}

	sections := vocalSections(&state.Arrangement)
	if len(sections) == 0 {
		log.Printf("⚠️  LYRICIST: no vocal sections planned, skipping lyrics")
		state.Lyrics = models.Lyrics{IsInstrumental: true}
		return state, nil
	}

	if state.Request.LyricsMode == models.LyricsModeCustom && strings.TrimSpace(state.Request.CustomLyrics) != "" {
		log.Printf("📝 LYRICIST: distributing custom lyrics over %d sections", len(sections))
		state.Lyrics = models.Lyrics{
			Sections: distributeLines(splitLines(state.Request.CustomLyrics), sections),
			Theme:    state.Request.SongIdea,
			Mood:     state.Request.Mood,
		}
		return state, nil
	}

	syllables := music.SyllableTarget(state.GlobalParams.Tempo)
	raw, err := oracle.Complete(ctx, a.prompts.Lyricist(&state, sections, syllables))
	if err != nil {
		log.Printf("⚠️  LYRICIST: oracle failed, using placeholder lyrics: %v", err)
		state = state.WithError(fmt.Sprintf("lyricist: oracle failed: %v", err))
		state.Lyrics = placeholderLyrics(&state.Request, sections)
		return state, nil
	}

	m := parse.Mapping(raw, nil)
	if m == nil {
		state = state.WithError("lyricist: unparseable oracle output")
		state.Lyrics = placeholderLyrics(&state.Request, sections)
		return state, nil
	}

	lyrics := models.Lyrics{
		Sections: map[string][]string{},
		Theme:    parse.String(m, "theme", state.Request.SongIdea),
		Mood:     parse.String(m, "mood", state.Request.Mood),
	}
	bySection := parse.Map(m, "sections")
	for _, section := range sections {
		lines := linesFor(bySection, section)
		if len(lines) == 0 {
			log.Printf("⚠️  LYRICIST: oracle skipped section %q, patching placeholder", section)
			lines = placeholderLines(&state.Request, section)
		}
		lyrics.Sections[section] = lines
	}

	log.Printf("📝 LYRICIST: lyrics for %d sections (theme %q)", len(lyrics.Sections), lyrics.Theme)
	state.Lyrics = lyrics
	return state, nil
}

// vocalSections collects the section names any vocal track covers, in
// section-order position.
func vocalSections(arr *models.Arrangement) []string {
	covered := map[string]bool{}
	for _, t := range arr.PlannedTracks {
		if t.Instrument != models.VocalsInstrument && t.Category != "vocal" {
			continue
		}
		for _, s := range t.Sections {
			covered[s] = true
		}
	}

	var out []string
	for _, name := range arr.SectionOrder {
		if covered[name] {
			out = append(out, name)
		}
	}
	// Sections the order list missed still need lyrics.
	for name := range covered {
		if !contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// distributeLines splits the custom lyric lines into contiguous chunks, one
// per section, keeping author order. With fewer lines than sections the
// trailing sections reuse the last line.
func distributeLines(lines, sections []string) map[string][]string {
	result := make(map[string][]string, len(sections))
	if len(lines) == 0 {
		return result
	}

	perSection := len(lines) / len(sections)
	if perSection < 1 {
		perSection = 1
	}
	rest := len(lines) - perSection*len(sections)

	idx := 0
	for _, section := range sections {
		n := perSection
		if rest > 0 {
			n++
			rest--
		}
		if idx >= len(lines) {
			result[section] = []string{lines[len(lines)-1]}
			continue
		}
		end := idx + n
		if end > len(lines) {
			end = len(lines)
		}
		result[section] = append([]string(nil), lines[idx:end]...)
		idx = end
	}
	return result
}

func placeholderLyrics(req *models.GenerationRequest, sections []string) models.Lyrics {
	out := models.Lyrics{
		Sections: make(map[string][]string, len(sections)),
		Theme:    req.SongIdea,
		Mood:     req.Mood,
	}
	for _, section := range sections {
		out.Sections[section] = placeholderLines(req, section)
	}
	return out
}

// placeholderLines derives simple singable lines from the song idea so a
// failed oracle still yields a complete vocal part.
func placeholderLines(req *models.GenerationRequest, section string) []string {
	idea := strings.TrimSpace(req.SongIdea)
	if idea == "" {
		idea = "this song"
	}
	if strings.HasPrefix(section, "chorus") {
		return []string{
			fmt.Sprintf("Oh, %s", idea),
			fmt.Sprintf("Sing it out, %s", idea),
		}
	}
	return []string{
		fmt.Sprintf("Thinking about %s", idea),
		"Holding on to what we know",
	}
}

func linesFor(bySection map[string]any, section string) []string {
	raw, ok := bySection[section]
	if !ok {
		// Tolerate case drift in section names.
		for name, v := range bySection {
			if strings.EqualFold(name, section) {
				raw = v
				ok = true
				break
			}
		}
	}
	if !ok {
		return nil
	}

	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var lines []string
	for _, item := range items {
		if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
			lines = append(lines, strings.TrimSpace(s))
		}
	}
	return lines
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
