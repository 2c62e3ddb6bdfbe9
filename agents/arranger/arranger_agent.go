// Package arranger plans the song structure: the section timeline and the
// list of tracks to generate, validated against the resource catalog.
package arranger

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/parse"
	"github.com/harmoniq-labs/songgen-agents-go/prompt"
)

// Sections may overshoot the target duration by this much before the
// timeline is rescaled.
const durationSlackSeconds = 10

// Agent is the arranger stage.
type Agent struct {
	prompts *prompt.Builder
}

// New creates the arranger agent.
func New() *Agent {
	return &Agent{prompts: prompt.NewBuilder()}
}

// Name returns the stage identifier.
func (a *Agent) Name() string { return "arranger" }

// Run fills in state.Arrangement. Every planned instrument is validated
// against the catalog; unavailable instruments are substituted from their
// category or dropped. Vocal tracks are dropped unconditionally for
// instrumental requests.
func (a *Agent) Run(ctx context.Context, state models.SongState, catalog *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error) {
	raw, err := oracle.Complete(ctx, a.prompts.Arranger(&state, catalog))
	if err != nil {
		log.Printf("⚠️  ARRANGER: oracle failed, using default structure: %v", err)
		state = state.WithError(fmt.Sprintf("arranger: oracle failed: %v", err))
		state.Arrangement = a.defaultArrangement(&state, catalog)
		return state, nil
	}

	m := parse.Mapping(raw, nil)
	if m == nil {
		state = state.WithError("arranger: unparseable oracle output")
		state.Arrangement = a.defaultArrangement(&state, catalog)
		return state, nil
	}

	arr := models.Arrangement{
		Structure: parseStructure(m),
	}
	arr.SectionOrder = parse.StringSlice(m, "sectionOrder")
	if len(arr.SectionOrder) == 0 {
		arr.SectionOrder = orderByStart(arr.Structure)
	}
	arr.PlannedTracks = a.parsePlannedTracks(m, &state, catalog)

	if len(arr.Structure) == 0 || len(arr.PlannedTracks) == 0 {
		log.Printf("⚠️  ARRANGER: oracle output missing structure or tracks, using defaults")
		state = state.WithError("arranger: incomplete oracle output")
		state.Arrangement = a.defaultArrangement(&state, catalog)
		return state, nil
	}

	rescaleStructure(arr.Structure, float64(state.GlobalParams.DurationSeconds))

	log.Printf("🏗️  ARRANGER: %d sections, %d planned tracks", len(arr.Structure), len(arr.PlannedTracks))
	state.Arrangement = arr
	return state, nil
}

// parsePlannedTracks reads, validates and normalizes the oracle's track
// plan. Unknown instruments are swapped for the alphabetically first entry
// of their category; tracks with no possible substitute are dropped, as is
// any vocal track when the request is instrumental.
func (a *Agent) parsePlannedTracks(m map[string]any, state *models.SongState, catalog *models.ResourceCatalog) []models.PlannedTrack {
	var tracks []models.PlannedTrack
	for _, tm := range parse.MapSlice(m, "plannedTracks") {
		track := models.PlannedTrack{
			Name:       parse.String(tm, "name", ""),
			Instrument: parse.String(tm, "instrument", ""),
			Category:   strings.ToLower(parse.String(tm, "category", "")),
			Role:       normalizeRole(parse.String(tm, "role", models.RoleHarmonic)),
			Sections:   parse.StringSlice(tm, "sections"),
			Pan:        clampF(parse.Float(tm, "pan", 0), -1, 1),
			Volume:     clampF(parse.Float(tm, "volume", 0.8), 0, 1),
		}
		if track.Instrument == "" {
			continue
		}

		isVocal := track.Instrument == models.VocalsInstrument || track.Category == "vocal"
		if isVocal && state.Request.IsInstrumental {
			log.Printf("🚫 ARRANGER: dropping vocal track %q from instrumental request", track.Name)
			continue
		}

		if !catalog.HasInstrument(track.Instrument) {
			substitute, ok := catalog.Substitute(track.Category)
			if !ok {
				log.Printf("🚫 ARRANGER: no substitute for unavailable %q (%s), dropping track",
					track.Instrument, track.Category)
				continue
			}
			log.Printf("🔄 ARRANGER: %q unavailable, substituting %q", track.Instrument, substitute)
			track.Instrument = substitute
			track.Name = substitute
		}
		if track.Category == "" {
			track.Category = catalog.CategoryOf(track.Instrument)
		}
		if track.Name == "" {
			track.Name = track.Instrument
		}
		tracks = append(tracks, track)
	}
	return tracks
}

// defaultArrangement is the deterministic fallback: a standard song
// skeleton scaled to the target duration, with a style-aware track list.
func (a *Agent) defaultArrangement(state *models.SongState, catalog *models.ResourceCatalog) models.Arrangement {
	duration := float64(state.GlobalParams.DurationSeconds)
	if duration <= 0 {
		duration = 180
	}

	names := []string{"intro", "verse 1", "chorus 1", "verse 2", "chorus 2", "bridge", "chorus 3", "outro"}
	weights := []float64{1, 2, 2, 2, 2, 1.5, 2, 1}
	if duration < 120 {
		names = []string{"intro", "verse 1", "chorus", "outro"}
		weights = []float64{1, 2, 2, 1}
	}

	var total float64
	for _, w := range weights {
		total += w
	}

	tempo := state.GlobalParams.Tempo
	if tempo <= 0 {
		tempo = 120
	}
	secondsPerBar := 60.0 / float64(tempo) * 4

	structure := make(map[string]models.Section, len(names))
	start := 0.0
	for i, name := range names {
		secDur := duration * weights[i] / total
		bars := int(secDur / secondsPerBar)
		if bars < 1 {
			bars = 1
		}
		structure[name] = models.Section{StartTime: start, Duration: secDur, Bars: bars}
		start += secDur
	}

	allSections := append([]string(nil), names...)
	var tracks []models.PlannedTrack

	if keys, ok := catalog.Substitute("keyboard"); ok {
		tracks = append(tracks, models.PlannedTrack{
			Name: keys, Instrument: keys, Category: "keyboard",
			Role: models.RoleHarmonic, Sections: allSections, Pan: 0, Volume: 0.8,
		})
	}
	if !state.Request.IsInstrumental {
		tracks = append(tracks, models.PlannedTrack{
			Name: "lead vocals", Instrument: models.VocalsInstrument, Category: "vocal",
			Role: models.RoleMelodic, Sections: vocalSectionsOf(names), Pan: 0, Volume: 0.9,
		})
	}
	if state.Request.HasStyle("rock", "pop", "alternative", "indie") {
		if bass, ok := catalog.Substitute("bass"); ok {
			tracks = append(tracks, models.PlannedTrack{
				Name: bass, Instrument: bass, Category: "bass",
				Role: models.RoleRhythmic, Sections: allSections, Pan: -0.1, Volume: 0.8,
			})
		}
		if drums, ok := catalog.Substitute("percussion"); ok {
			tracks = append(tracks, models.PlannedTrack{
				Name: drums, Instrument: drums, Category: "percussion",
				Role: models.RoleRhythmic, Sections: allSections, Pan: 0, Volume: 0.8,
			})
		}
	}

	return models.Arrangement{Structure: structure, SectionOrder: names, PlannedTracks: tracks}
}

// vocalSectionsOf keeps verses, choruses and the bridge; intros and outros
// stay instrumental in the fallback skeleton.
func vocalSectionsOf(names []string) []string {
	var out []string
	for _, name := range names {
		if strings.HasPrefix(name, "verse") || strings.HasPrefix(name, "chorus") || name == "bridge" {
			out = append(out, name)
		}
	}
	return out
}

func parseStructure(m map[string]any) map[string]models.Section {
	structure := make(map[string]models.Section)
	for name, raw := range parse.Map(m, "structure") {
		sm, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		structure[name] = models.Section{
			StartTime: parse.Float(sm, "startTime", 0),
			Duration:  parse.Float(sm, "duration", 0),
			Bars:      parse.Int(sm, "bars", 4),
		}
	}
	return structure
}

// rescaleStructure proportionally shrinks start/duration values when the
// timeline overshoots the target by more than the allowed slack.
func rescaleStructure(structure map[string]models.Section, targetSeconds float64) {
	var end float64
	for _, s := range structure {
		if e := s.StartTime + s.Duration; e > end {
			end = e
		}
	}
	if end <= targetSeconds+durationSlackSeconds || end == 0 {
		return
	}

	factor := targetSeconds / end
	log.Printf("📏 ARRANGER: rescaling structure by %.2f (%.0fs over target %.0fs)", factor, end, targetSeconds)
	for name, s := range structure {
		s.StartTime *= factor
		s.Duration *= factor
		structure[name] = s
	}
}

func orderByStart(structure map[string]models.Section) []string {
	names := make([]string, 0, len(structure))
	for name := range structure {
		names = append(names, name)
	}
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if structure[names[j]].StartTime < structure[names[i]].StartTime {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return names
}

func normalizeRole(role string) string {
	switch strings.ToLower(role) {
	case models.RoleMelodic, models.RoleHarmonic, models.RoleRhythmic, models.RoleTextural:
		return strings.ToLower(role)
	default:
		return models.RoleHarmonic
	}
}

func clampF(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
