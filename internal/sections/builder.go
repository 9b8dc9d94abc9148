package sections

import (
	"fmt"
	"strconv"

	"payloadforge/internal/logging"
)

// Builder turns topic records into sections. The zero value is usable; it
// merges the embedded catalogue and assigns no platforms.
type Builder struct {
	// Platforms is assigned to every parent section and inherited by its
	// sub-sections. Usually the document's metadata platform list.
	Platforms []string

	// Catalog overrides the embedded known-missing catalogue when non-nil.
	Catalog []CatalogEntry

	// SkipCatalog disables the known-missing merge.
	SkipCatalog bool
}

// BuildSections runs a build pass with a zero Builder.
func BuildSections(input any) ([]Section, error) {
	var b Builder
	return b.Build(input)
}

// Build validates input and returns the parent sections, their sub-sections
// and any merged catalogue sections, in that order. Only input that is not an
// array fails; malformed topics and identifiers are logged and skipped.
func (b *Builder) Build(input any) ([]Section, error) {
	decoded, err := DecodeTopics(input)
	if err != nil {
		return nil, err
	}
	return b.build(decoded), nil
}

// BuildTopics is Build for already-typed topics.
func (b *Builder) BuildTopics(topics []RawTopic) []Section {
	decoded, _ := DecodeTopics(topics)
	return b.build(decoded)
}

func (b *Builder) build(decoded []TopicDecode) []Section {
	timer := logging.StartTimer(logging.CategorySections, "section build")
	defer timer.Stop()

	acc := newAccumulator()
	for _, d := range decoded {
		switch t := d.(type) {
		case RejectedTopic:
			logging.SectionsWarn("%v", &TopicProcessingError{Index: t.Index, Reason: t.Reason})
		case ValidTopic:
			emitted, err := b.processTopic(t)
			if err != nil {
				logging.SectionsWarn("%v", err)
				continue
			}
			acc.commit(emitted)
		}
	}

	out := acc.sections
	if out == nil {
		out = []Section{}
	}
	if !b.SkipCatalog {
		catalog := b.Catalog
		if catalog == nil {
			catalog = DefaultCatalog()
		}
		out = MergeKnownMissing(out, catalog)
	}
	logging.Sections("built %d sections from %d topics", len(out), len(decoded))
	return out
}

// processTopic returns the parent section followed by its sub-sections.
// A panic while processing drops only this topic.
func (b *Builder) processTopic(t ValidTopic) (emitted []Section, err error) {
	defer func() {
		if r := recover(); r != nil {
			emitted = nil
			err = &TopicProcessingError{Index: t.Index, Reason: fmt.Sprint(r)}
		}
	}()

	topic := t.Topic
	title := StripMarkup(topic.Title)
	parentID := NormalizeKey(title)
	if parentID == "" {
		parentID = "section" + strconv.Itoa(t.Index)
	}
	parentName := title
	if parentName == "" {
		parentName = topic.Anchor
	}
	if parentName == "" {
		parentName = "Section " + strconv.Itoa(t.Index)
	}

	parent := Section{
		Identifier:               parentID,
		Name:                     parentName,
		Platforms:                copyStrings(b.Platforms),
		ConfigurationIdentifiers: copyStrings(topic.Identifiers),
		Parameters:               []Parameter{},
	}
	emitted = append(emitted, parent)

	for _, ref := range t.BadRefs {
		logging.SectionsWarn("%v", &IdentifierResolutionError{Topic: parentName, Ref: ref})
	}

	for _, ref := range topic.Identifiers {
		configType, ok := ExtractConfigType(ref)
		if !ok {
			logging.SectionsDebug("%v", &IdentifierResolutionError{Topic: parentName, Ref: ref})
			continue
		}
		key := NormalizeKey(configType)
		if key == "" {
			logging.SectionsDebug("%v", &IdentifierResolutionError{Topic: parentName, Ref: ref})
			continue
		}
		// A topic usually lists itself among its identifiers; that entry is
		// the parent, never a child of it.
		if key == parentID {
			continue
		}
		emitted = append(emitted, Section{
			Identifier:               key,
			Name:                     SplitWords(configType),
			IsSubSection:             true,
			ParentSection:            parent.Identifier,
			ParentName:               parent.Name,
			Platforms:                copyStrings(parent.Platforms),
			ConfigurationIdentifiers: []string{ref},
			Parameters:               []Parameter{},
		})
	}
	return emitted, nil
}

// accumulator enforces identifier uniqueness across a build pass.
// The first section to claim an identifier keeps it; later claimants only
// contribute their provenance. The hierarchy stays two levels deep: when a
// topic's parent loses its identifier to an earlier section, the topic's
// children move to the top-level section that owns it.
type accumulator struct {
	sections []Section
	index    map[string]int
}

func newAccumulator() *accumulator {
	return &accumulator{index: make(map[string]int)}
}

// commit adds one topic's output: its parent first, then its sub-sections.
func (a *accumulator) commit(emitted []Section) {
	var owner, ownerName string
	for _, s := range emitted {
		if s.IsSubSection && owner != "" {
			s.ParentSection = owner
			s.ParentName = ownerName
		}
		if i, exists := a.index[s.Identifier]; exists {
			kept := &a.sections[i]
			logging.SectionsWarn("duplicate section %q from %q dropped; kept the one under %q",
				s.Identifier, s.ParentName, kept.ParentName)
			kept.ConfigurationIdentifiers = appendUnique(kept.ConfigurationIdentifiers, s.ConfigurationIdentifiers...)
			if !s.IsSubSection {
				owner, ownerName = kept.Identifier, kept.Name
				if kept.IsSubSection {
					owner, ownerName = kept.ParentSection, kept.ParentName
				}
			}
			continue
		}
		a.index[s.Identifier] = len(a.sections)
		a.sections = append(a.sections, s)
	}
}

func appendUnique(dst []string, values ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, v := range dst {
		seen[v] = struct{}{}
	}
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		dst = append(dst, v)
	}
	return dst
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
