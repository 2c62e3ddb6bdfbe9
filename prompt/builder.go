// Package prompt builds the per-stage prompts sent to the completion
// oracle. Prompts are plain text with a JSON output contract; when a run is
// a QA restart, the accumulated feedback is folded in so the retry actually
// addresses prior complaints instead of repeating them.
package prompt

import (
	"fmt"
	"strings"

	"github.com/harmoniq-labs/songgen-agents-go/models"
)

// Builder constructs stage prompts.
type Builder struct{}

// NewBuilder creates a new prompt builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// System is the system prompt shared by every completion call in the
// pipeline.
func (b *Builder) System() string {
	return "You are one specialist in an automated song generation pipeline. " +
		"Follow the task exactly and respond with only the requested JSON object, " +
		"no prose and no code fences."
}

// vocalTerms mark feedback lines that only apply to vocal content.
var vocalTerms = []string{"vocal", "voice", "sing", "singer", "lyric", "harmony", "harmonies", "melody line", "choir"}

// FilterFeedback drops feedback irrelevant to the current run. For
// instrumental requests every vocal-related complaint is removed so a
// repeated attempt never tries to "fix" vocals that must not exist.
func FilterFeedback(feedback []string, isInstrumental bool) []string {
	if !isInstrumental {
		return feedback
	}
	var kept []string
	for _, line := range feedback {
		lower := strings.ToLower(line)
		vocal := false
		for _, term := range vocalTerms {
			if strings.Contains(lower, term) {
				vocal = true
				break
			}
		}
		if !vocal {
			kept = append(kept, line)
		}
	}
	return kept
}

// feedbackSection renders the QA-restart context block, or "" on a first
// attempt.
func (b *Builder) feedbackSection(state *models.SongState) string {
	if state.QARestartCount == 0 {
		return ""
	}
	feedback := FilterFeedback(state.QAFeedback, state.Request.IsInstrumental)
	if len(feedback) == 0 {
		return ""
	}
	return fmt.Sprintf(`

This is retry attempt %d. The previous attempt received this feedback; address every point:
- %s`, state.QARestartCount, strings.Join(feedback, "\n- "))
}

// styleLine renders the request's style description.
func styleLine(req *models.GenerationRequest) string {
	parts := append([]string(nil), req.StyleTags...)
	if req.CustomStyle != "" {
		parts = append(parts, req.CustomStyle)
	}
	if len(parts) == 0 {
		return "no specific style"
	}
	return strings.Join(parts, ", ")
}

// Composer builds the global-parameters prompt.
func (b *Builder) Composer(state *models.SongState) string {
	req := &state.Request
	keyHint := "choose a fitting key"
	if req.PreferredKey != "" {
		keyHint = "use the key " + req.PreferredKey
	}
	moodHint := ""
	if req.Mood != "" {
		moodHint = fmt.Sprintf("\nMood: %s", req.Mood)
	}

	return fmt.Sprintf(`You are a music composer deciding the global parameters for a new song.

Song idea: %s
Style: %s%s
Target duration: about %d seconds. %s.

Respond with ONLY a JSON object:
{"tempo": <bpm 60-200>, "key": "<e.g. C major, F# minor>", "timeSignature": [4, 4], "durationSeconds": <60-600>, "estimatedBars": <int>}%s`,
		req.SongIdea, styleLine(req), moodHint, req.DurationTarget(), keyHint, b.feedbackSection(state))
}

// Arranger builds the section/track-plan prompt.
func (b *Builder) Arranger(state *models.SongState, catalog *models.ResourceCatalog) string {
	req := &state.Request
	vocalNote := "Include one vocal track (instrument \"vocals\", category \"vocal\")."
	if req.IsInstrumental {
		vocalNote = "This song is INSTRUMENTAL: do not plan any vocal track."
	}

	var samples string
	if lines := userSampleLines(catalog); len(lines) > 0 {
		samples = "\nUser-uploaded samples you may reference by name:\n" + strings.Join(lines, "\n")
	}

	return fmt.Sprintf(`You are a music arranger planning the structure of a song.

Song idea: %s
Style: %s
Tempo %d bpm, key %s, duration %d seconds (~%d bars).
%s

Available instruments by category:
%s%s

Respond with ONLY a JSON object:
{"structure": {"<section name>": {"startTime": <sec>, "duration": <sec>, "bars": <int>}, ...},
 "sectionOrder": ["intro", "verse 1", ...],
 "plannedTracks": [{"name": "...", "instrument": "<from the list above>", "category": "<its category>",
   "role": "melodic|harmonic|rhythmic|textural", "sections": ["<section name>", ...],
   "pan": <-1..1>, "volume": <0..1>}]}%s`,
		req.SongIdea, styleLine(req),
		state.GlobalParams.Tempo, state.GlobalParams.Key,
		state.GlobalParams.DurationSeconds, state.GlobalParams.EstimatedBars,
		vocalNote, instrumentLines(catalog), samples, b.feedbackSection(state))
}

// Lyricist builds the section-keyed lyric prompt.
func (b *Builder) Lyricist(state *models.SongState, vocalSections []string, syllableTarget int) string {
	req := &state.Request
	return fmt.Sprintf(`You are a lyricist writing lyrics for a song.

Song idea: %s
Style: %s
Key %s, tempo %d bpm.
Sections needing lyrics: %s
Aim for about %d syllables per line, 2-4 lines per section.

Respond with ONLY a JSON object:
{"theme": "...", "mood": "...", "sections": {"<section name>": ["line 1", "line 2", ...], ...}}%s`,
		req.SongIdea, styleLine(req), state.GlobalParams.Key, state.GlobalParams.Tempo,
		strings.Join(vocalSections, ", "), syllableTarget, b.feedbackSection(state))
}

// Vocalist builds the melody prompt for one vocal track, covering all of
// its sections in a single completion.
func (b *Builder) Vocalist(state *models.SongState, track *models.PlannedTrack, sections []string, linesBySection map[string][]string, rangeNotes []string) string {
	var blocks []string
	for _, section := range sections {
		blocks = append(blocks, fmt.Sprintf("[%s]\n- %s", section, strings.Join(linesBySection[section], "\n- ")))
	}

	return fmt.Sprintf(`You are a vocal melody writer. Set these lyric lines to pitches for the track %q.

Song key: %s, tempo %d bpm.
Singable notes for this voice (stay inside this set): %s
Sections and their lyric lines:
%s

Respond with ONLY a JSON object:
{"sections": {"<section name>": {"lines": [{"text": "<the line>", "notes": ["<pitch>", ...], "start": <beat offset in the section>, "durations": [<beats per note>, ...]}]}, ...}}
Each line's notes and durations arrays must have the same length.%s`,
		track.Name, state.GlobalParams.Key, state.GlobalParams.Tempo,
		strings.Join(rangeNotes, " "), strings.Join(blocks, "\n"), b.feedbackSection(state))
}

// Instrumentalist builds the note-content prompt for every non-vocal
// planned track at once; each trackLine describes one track.
func (b *Builder) Instrumentalist(state *models.SongState, trackLines []string) string {
	return fmt.Sprintf(`You are a session musician writing the instrumental parts for a song.

Song: %s. Key %s, tempo %d bpm.
Tracks to write, one part each:
%s

Respond with ONLY a JSON object:
{"tracks": {"<track name>": {"sections": {"<section name>": {"notes": ["<pitch like C4>", ...]}, ...}}, ...}}
Put the notes array directly in each section object.%s`,
		state.Request.SongIdea, state.GlobalParams.Key, state.GlobalParams.Tempo,
		strings.Join(trackLines, "\n"), b.feedbackSection(state))
}

// EffectsPrompt builds the mixing prompt over the combined track list.
func (b *Builder) EffectsPrompt(state *models.SongState, trackSummaries []string) string {
	return fmt.Sprintf(`You are a mixing engineer assigning send effects.

Style: %s
Tracks:
%s

Respond with ONLY a JSON object mapping track id to effects in [0,1]:
{"trackEffects": {"<track id>": {"reverb": 0.3, "delay": 0.1, "distortion": 0.0}, ...}}%s`,
		styleLine(&state.Request), strings.Join(trackSummaries, "\n"), b.feedbackSection(state))
}

// Reviewer builds the draft-review prompt.
func (b *Builder) Reviewer(state *models.SongState, draftSummary string) string {
	return fmt.Sprintf(`You are reviewing a generated song draft before final processing.

Request: %s
Draft summary:
%s

Only a genuinely critical, playback-blocking defect (missing required fields,
broken track references, empty song) justifies a revision. Routine
imperfections do not.

Respond with ONLY a JSON object:
{"recommendation": "continue" or "revise", "notes": ["...", ...], "critical": true|false}`,
		state.Request.SongIdea, draftSummary)
}

// Designer builds the album-art concept prompt.
func (b *Builder) Designer(state *models.SongState) string {
	return fmt.Sprintf(`You are an album cover designer.

Song idea: %s
Style: %s
Mood: %s
Key: %s

Respond with ONLY a JSON object:
{"concept": "<one-paragraph visual concept>", "colorPalette": ["<color>", ...], "style": "<art style>", "mood": "<mood>", "imagePrompt": "<a single prompt for an image generator>"}`,
		state.Request.SongIdea, styleLine(&state.Request), firstNonEmpty(state.Lyrics.Mood, state.Request.Mood, "evocative"), state.GlobalParams.Key)
}

// QA builds the final document-validation prompt.
func (b *Builder) QA(state *models.SongState, docSummary string, issues []string) string {
	issueBlock := "none"
	if len(issues) > 0 {
		issueBlock = "- " + strings.Join(issues, "\n- ")
	}
	return fmt.Sprintf(`You are the final quality gate for a generated song document.

Request: %s (instrumental: %t)
Document summary:
%s
Mechanical issues already repaired:
%s

Respond with ONLY a JSON object:
{"verdict": "pass" or "fail", "issues": ["<remaining problem>", ...]}
Report an issue only if it would audibly break playback or clearly
contradict the request.`,
		state.Request.SongIdea, state.Request.IsInstrumental, docSummary, issueBlock)
}

func instrumentLines(catalog *models.ResourceCatalog) string {
	var lines []string
	for _, category := range sortedKeys(catalog.Instruments) {
		lines = append(lines, fmt.Sprintf("- %s: %s", category, strings.Join(catalog.Instruments[category], ", ")))
	}
	return strings.Join(lines, "\n")
}

func userSampleLines(catalog *models.ResourceCatalog) []string {
	var lines []string
	for _, category := range sortedKeys(catalog.UserSamples) {
		for _, s := range catalog.UserSamples[category] {
			desc := s.Name
			if s.BPM > 0 {
				desc += fmt.Sprintf(" (%d bpm", s.BPM)
				if s.Key != "" {
					desc += ", " + s.Key
				}
				desc += ")"
			}
			if len(s.Tags) > 0 {
				desc += " [" + strings.Join(s.Tags, ", ") + "]"
			}
			lines = append(lines, fmt.Sprintf("- %s: %s", category, desc))
		}
	}
	return lines
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
