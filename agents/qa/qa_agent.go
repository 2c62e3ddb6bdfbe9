// Package qa is the final quality gate: it assembles and schema-repairs
// the song document, then asks the oracle for a pass/fail verdict.
package qa

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/harmoniq-labs/songgen-agents-go/assembler"
	"github.com/harmoniq-labs/songgen-agents-go/llm"
	"github.com/harmoniq-labs/songgen-agents-go/models"
	"github.com/harmoniq-labs/songgen-agents-go/parse"
	"github.com/harmoniq-labs/songgen-agents-go/prompt"
)

// Agent is the QA stage.
type Agent struct {
	prompts *prompt.Builder
}

// New creates the QA agent.
func New() *Agent {
	return &Agent{prompts: prompt.NewBuilder()}
}

// Name returns the stage identifier.
func (a *Agent) Name() string { return "qa" }

// Run assembles the final document, repairs it deterministically, records
// the corrections, and sets IsReadyForExport from the oracle's verdict.
// Mechanical repair always happens before judging, so an oracle failure
// still leaves a schema-valid document and a passing verdict.
func (a *Agent) Run(ctx context.Context, state models.SongState, catalog *models.ResourceCatalog, oracle llm.Oracle) (models.SongState, error) {
	doc := assembler.Build(&state)
	corrections := assembler.Repair(doc)
	if len(corrections) > 0 {
		log.Printf("🔧 QA: applied %d schema repairs", len(corrections))
		state.QACorrections = append(append([]string(nil), state.QACorrections...), corrections...)
	}
	state.FinalSongDocument = doc
	state.IsReadyForExport = true
	state.QAFeedback = nil

	raw, err := oracle.Complete(ctx, a.prompts.QA(&state, documentSummary(doc), corrections))
	if err != nil {
		log.Printf("⚠️  QA: oracle failed, accepting repaired document: %v", err)
		state = state.WithError(fmt.Sprintf("qa: oracle failed: %v", err))
		return state, nil
	}

	m := parse.Mapping(raw, map[string]any{"verdict": "pass"})
	verdict := strings.ToLower(parse.String(m, "verdict", "pass"))
	issues := parse.StringSlice(m, "issues")

	if verdict == "fail" || len(issues) > 0 {
		if len(issues) == 0 {
			issues = []string{"quality check failed without specific issues"}
		}
		log.Printf("🚨 QA: verdict %s with %d issues", verdict, len(issues))
		state.IsReadyForExport = false
		state.QAFeedback = issues
	} else {
		log.Printf("✅ QA: document approved for export")
	}
	return state, nil
}

func documentSummary(doc *models.SongDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%q: tempo %d, %d/%d, key %s, %.0fs, %d tracks.\n",
		doc.Name, doc.Tempo, doc.TimeSignature[0], doc.TimeSignature[1],
		doc.Key, doc.Duration, len(doc.Tracks))
	for i := range doc.Tracks {
		track := &doc.Tracks[i]
		notes := 0
		voices := 0
		for _, clip := range track.Clips {
			notes += len(clip.Notes)
			voices += len(clip.Voices)
		}
		fmt.Fprintf(&b, "- %s (%s): %d clips, %d notes, %d voice lines\n",
			track.Name, track.Instrument, len(track.Clips), notes, voices)
	}
	if doc.Lyrics != "" {
		fmt.Fprintf(&b, "Lyrics present (%d chars).\n", len(doc.Lyrics))
	}
	if doc.AlbumCover != "" {
		b.WriteString("Album cover attached.\n")
	}
	return b.String()
}
