package models

import "sort"

// SampleMetadata describes a user-uploaded sample with its musical metadata.
type SampleMetadata struct {
	Name            string   `json:"name"`
	BPM             int      `json:"bpm,omitempty"`
	Key             string   `json:"key,omitempty"`
	DurationSeconds float64  `json:"durationSeconds,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Voice describes one singing voice available to the vocalist agent.
type Voice struct {
	Name     string `json:"name"`
	Range    string `json:"range"` // soprano, alto, tenor, bass
	Trained  bool   `json:"trained"`
	Language string `json:"language"`
}

// ResourceCatalog is the read-only snapshot of available instruments,
// samples and voices, loaded once per generation request. It is never
// mutated after load and may be shared across concurrent requests.
type ResourceCatalog struct {
	Instruments map[string][]string            `json:"instruments"`
	Samples     map[string]map[string][]string `json:"samples"`
	UserSamples map[string][]SampleMetadata    `json:"userSamples"`
	Voices      map[string]Voice               `json:"voices"`
}

// FlatInstruments returns every instrument name across categories, sorted
// for a stable iteration order.
func (c *ResourceCatalog) FlatInstruments() []string {
	var all []string
	for _, names := range c.Instruments {
		all = append(all, names...)
	}
	sort.Strings(all)
	return all
}

// HasInstrument reports whether name is available in any category, or is
// the vocals sentinel.
func (c *ResourceCatalog) HasInstrument(name string) bool {
	if name == VocalsInstrument {
		return true
	}
	for _, names := range c.Instruments {
		for _, n := range names {
			if n == name {
				return true
			}
		}
	}
	return false
}

// CategoryOf returns the category an instrument belongs to, or "".
func (c *ResourceCatalog) CategoryOf(name string) string {
	for category, names := range c.Instruments {
		for _, n := range names {
			if n == name {
				return category
			}
		}
	}
	return ""
}

// Substitute returns a replacement instrument from the given category.
// The alphabetically first entry is used as a stable tie-break.
func (c *ResourceCatalog) Substitute(category string) (string, bool) {
	names := append([]string(nil), c.Instruments[category]...)
	if len(names) == 0 {
		return "", false
	}
	sort.Strings(names)
	return names[0], true
}

// HasVoice reports whether id is a known voice.
func (c *ResourceCatalog) HasVoice(id string) bool {
	_, ok := c.Voices[id]
	return ok
}

// VoiceIDs returns all voice identifiers in sorted order.
func (c *ResourceCatalog) VoiceIDs() []string {
	ids := make([]string, 0, len(c.Voices))
	for id := range c.Voices {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
