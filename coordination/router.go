package coordination

import "strings"

// Stage identifiers used by the controller graph and the feedback router.
const (
	StageComposer        = "composer"
	StageArranger        = "arranger"
	StageLyricist        = "lyricist"
	StageVocalist        = "vocalist"
	StageInstrumentalist = "instrumentalist"
	StageEffects         = "effects"
	StageReviewer        = "reviewer"
	StageDesigner        = "designer"
	StageQA              = "qa"

	StageComplete     = "complete"
	StageUserApproval = "user_approval"
)

// routeRule maps feedback keywords to the stage that should re-run. Rules
// are evaluated in order; the first match wins.
type routeRule struct {
	target   string
	vocal    bool
	keywords []string
}

var routeRules = []routeRule{
	{target: StageComposer, keywords: []string{"tempo", "bpm", "key", "timing", "too fast", "too slow", "time signature"}},
	{target: StageArranger, keywords: []string{"structure", "section", "arrangement", "track count", "too many tracks", "too few tracks", "intro", "outro", "bridge"}},
	{target: StageLyricist, vocal: true, keywords: []string{"lyric", "words", "rhyme", "verse content", "chorus words"}},
	{target: StageVocalist, vocal: true, keywords: []string{"vocal", "voice", "sing", "melody", "harmony", "harmonies"}},
	{target: StageInstrumentalist, keywords: []string{"instrument", "note", "pattern", "riff", "guitar", "piano", "drum", "bass", "part"}},
	{target: StageEffects, keywords: []string{"mix", "reverb", "delay", "distortion", "volume", "loud", "quiet", "effect"}},
	{target: StageDesigner, keywords: []string{"album", "cover", "art", "image", "artwork"}},
}

// Terms that mark feedback as vocal-flavored for the instrumental guard.
var vocalGuardTerms = []string{"vocal", "voice", "sing", "lyric", "harmony", "harmonies", "melody", "choir"}

var structureTerms = []string{"structure", "section", "arrangement", "track"}

// ClassifyFeedback picks exactly one restart target for the given QA
// feedback. The instrumental guard runs before the rule table: an
// instrumental run is never routed into the lyricist or vocalist stages,
// even when the feedback literally complains about vocals. Feedback that
// matches nothing defaults to the arranger as the broadest rework stage.
func ClassifyFeedback(feedback []string, isInstrumental bool) string {
	text := strings.ToLower(strings.Join(feedback, "\n"))

	if isInstrumental && containsAny(text, vocalGuardTerms) {
		if containsAny(text, structureTerms) {
			return StageArranger
		}
		return StageInstrumentalist
	}

	for _, rule := range routeRules {
		if rule.vocal && isInstrumental {
			continue
		}
		if containsAny(text, rule.keywords) {
			return rule.target
		}
	}
	return StageArranger
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}
