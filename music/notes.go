// Package music holds the fixed musical lookup tables the stage agents
// share: scale notes per key, vocal range tables, register conventions per
// instrument category, and deterministic fallback note patterns.
package music

import (
	"fmt"
	"math"
	"strings"
)

var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var flatEquivalents = map[string]string{
	"DB": "C#", "EB": "D#", "GB": "F#", "AB": "G#", "BB": "A#",
}

// Intervals (semitones from the tonic) for major and natural minor scales.
var (
	majorIntervals = []int{0, 2, 4, 5, 7, 9, 11}
	minorIntervals = []int{0, 2, 3, 5, 7, 8, 10}
)

// ParseKey splits a key string like "C", "F# minor" or "Ebm" into its tonic
// pitch class index and minor flag. Unparseable keys fall back to C major.
func ParseKey(key string) (root int, minor bool) {
	s := strings.TrimSpace(key)
	if s == "" {
		return 0, false
	}

	upper := strings.ToUpper(s)
	minor = strings.Contains(strings.ToLower(s), "min") || strings.HasSuffix(s, "m")

	tonic := upper
	if idx := strings.IndexAny(upper, " M"); idx > 0 {
		tonic = upper[:idx]
	}
	if len(tonic) > 2 {
		tonic = tonic[:2]
	}
	if repl, ok := flatEquivalents[tonic]; ok {
		tonic = repl
	}

	for i, name := range noteNames {
		if name == tonic {
			return i, minor
		}
	}
	// Natural-letter fallback for anything the sharp/flat handling missed.
	for i, name := range noteNames {
		if name == tonic[:1] {
			return i, minor
		}
	}
	return 0, minor
}

// ScaleNotes returns the pitch names of the key's scale in the given octave.
func ScaleNotes(key string, octave int) []string {
	root, minor := ParseKey(key)
	intervals := majorIntervals
	if minor {
		intervals = minorIntervals
	}

	notes := make([]string, 0, len(intervals))
	for _, interval := range intervals {
		pc := (root + interval) % 12
		oct := octave + (root+interval)/12
		notes = append(notes, fmt.Sprintf("%s%d", noteNames[pc], oct))
	}
	return notes
}

// Tonic returns the tonic pitch name of the key in the given octave.
func Tonic(key string, octave int) string {
	root, _ := ParseKey(key)
	return fmt.Sprintf("%s%d", noteNames[root], octave)
}

// Vocal range classes.
const (
	RangeSoprano = "soprano"
	RangeAlto    = "alto"
	RangeTenor   = "tenor"
	RangeBass    = "bass"
)

// rangeOctaves maps a range class to the octave its scale tones sit in.
var rangeOctaves = map[string]int{
	RangeSoprano: 5,
	RangeAlto:    4,
	RangeTenor:   4,
	RangeBass:    3,
}

// VocalRangeNotes returns singable scale notes for a range class in the
// song key. Unknown range classes are treated as alto.
func VocalRangeNotes(rangeClass, key string) []string {
	octave, ok := rangeOctaves[strings.ToLower(rangeClass)]
	if !ok {
		octave = rangeOctaves[RangeAlto]
	}
	return ScaleNotes(key, octave)
}

// RegisterOctave returns the conventional octave for an instrument
// category: bass low, keys and guitars mid, melodic leads high.
func RegisterOctave(category, role string) int {
	switch strings.ToLower(category) {
	case "bass":
		return 2
	case "keyboard", "keys", "piano", "guitar", "strings":
		return 4
	case "percussion", "drums":
		return 2
	default:
		if role == "melodic" {
			return 5
		}
		return 4
	}
}

// Percussion hit names used by the fixed drum fallback pattern.
const (
	KickNote  = "C2"
	SnareNote = "D2"
)

// DefaultPattern returns a deterministic fallback note pattern for an
// instrument category in the song key, sized to roughly barCount bars.
// Percussion gets a fixed kick/snare alternation; pitched instruments walk
// the scale in their register.
func DefaultPattern(category, role, key string, barCount int) []string {
	if barCount < 1 {
		barCount = 4
	}

	switch strings.ToLower(category) {
	case "percussion", "drums":
		notes := make([]string, 0, barCount*4)
		for bar := 0; bar < barCount; bar++ {
			notes = append(notes, KickNote, SnareNote, KickNote, SnareNote)
		}
		return notes

	case "bass":
		// Root-fifth movement anchors the low end.
		scale := ScaleNotes(key, RegisterOctave(category, role))
		notes := make([]string, 0, barCount*2)
		for bar := 0; bar < barCount; bar++ {
			notes = append(notes, scale[0], scale[4%len(scale)])
		}
		return notes

	default:
		scale := ScaleNotes(key, RegisterOctave(category, role))
		degrees := []int{0, 2, 4, 2}
		if role == "melodic" {
			degrees = []int{0, 2, 4, 5, 4, 2}
		}
		notes := make([]string, 0, barCount*len(degrees))
		for bar := 0; bar < barCount; bar++ {
			for _, d := range degrees {
				notes = append(notes, scale[d%len(scale)])
			}
		}
		return notes
	}
}

// SyllableTarget estimates lyric syllables per line from tempo. A sung
// line spans roughly two seconds, at 2.5 syllables per beat; the result is
// clamped to a singable [4, 16].
func SyllableTarget(tempo int) int {
	if tempo <= 0 {
		tempo = 120
	}
	beats := float64(tempo) / 60 * 2
	target := int(math.Round(beats * 2.5))
	if target < 4 {
		target = 4
	}
	if target > 16 {
		target = 16
	}
	return target
}
