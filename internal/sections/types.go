// Package sections turns vendor topic records into the flat, de-duplicated
// section hierarchy consumed by the profile editor.
//
// A build pass is a pure function of its input: every topic contributes one
// parent section plus one sub-section per configuration type it references,
// and a fixed catalogue of frequently-absent sections is merged in last.
// Identity comparisons all go through NormalizeKey.
package sections

// RawTopic is one topic record as supplied by the upstream document.
type RawTopic struct {
	Title       string   `json:"title,omitempty"`
	Anchor      string   `json:"anchor,omitempty"`
	Identifiers []string `json:"identifiers"`
}

// Parameter is a single parameter definition taken from a section document.
// Its shape is vendor-defined and passed through untouched.
type Parameter map[string]any

// Section is the canonical configurable unit.
type Section struct {
	Identifier               string      `json:"identifier"`
	Name                     string      `json:"name"`
	IsSubSection             bool        `json:"isSubSection"`
	ParentSection            string      `json:"parentSection,omitempty"`
	ParentName               string      `json:"parentName,omitempty"`
	Platforms                []string    `json:"platforms"`
	IsSynthetic              bool        `json:"isSynthetic"`
	ConfigurationIdentifiers []string    `json:"configurationIdentifiers"`
	Parameters               []Parameter `json:"parameters"`

	// Catalogue metadata; empty for sections derived from topics.
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Priority    int    `json:"priority,omitempty"`
}

// Parents returns the top-level sections in order.
func Parents(all []Section) []Section {
	var out []Section
	for _, s := range all {
		if !s.IsSubSection {
			out = append(out, s)
		}
	}
	return out
}

// Children returns the sub-sections whose parent is the given identifier.
func Children(all []Section, parent string) []Section {
	key := NormalizeKey(parent)
	var out []Section
	for _, s := range all {
		if s.IsSubSection && NormalizeKey(s.ParentSection) == key {
			out = append(out, s)
		}
	}
	return out
}

// Identifiers returns the identifier of every section, in order.
func Identifiers(all []Section) []string {
	ids := make([]string, len(all))
	for i, s := range all {
		ids[i] = s.Identifier
	}
	return ids
}
