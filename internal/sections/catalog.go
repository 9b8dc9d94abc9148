package sections

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"payloadforge/internal/logging"
)

//go:embed catalog.yaml
var catalogYAML []byte

// CatalogEntry describes a section that is merged in when the input omits it.
type CatalogEntry struct {
	Identifier  string   `yaml:"identifier"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Platforms   []string `yaml:"platforms"`
	Category    string   `yaml:"category"`
	Priority    int      `yaml:"priority"`
	Identifiers []string `yaml:"identifiers"`
}

var (
	defaultCatalogOnce sync.Once
	defaultCatalog     []CatalogEntry
)

// DefaultCatalog returns a copy of the embedded known-missing catalogue.
func DefaultCatalog() []CatalogEntry {
	defaultCatalogOnce.Do(func() {
		entries, err := LoadCatalog(catalogYAML)
		if err != nil {
			logging.SectionsWarn("embedded catalogue unusable: %v", err)
			return
		}
		defaultCatalog = entries
	})
	out := make([]CatalogEntry, len(defaultCatalog))
	copy(out, defaultCatalog)
	return out
}

// LoadCatalog parses a YAML catalogue. Entries without an identifier or a
// name are rejected.
func LoadCatalog(data []byte) ([]CatalogEntry, error) {
	var entries []CatalogEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalogue: %w", err)
	}
	for i, e := range entries {
		if NormalizeKey(e.Identifier) == "" && NormalizeKey(e.Name) == "" {
			return nil, fmt.Errorf("catalogue entry %d has neither identifier nor name", i+1)
		}
	}
	return entries, nil
}

// MergeKnownMissing appends a synthetic section for every catalogue entry
// that is not already present. An entry is present when an existing section
// has the same identifier, the same name ignoring case, or the same
// normalized name. Running it on its own output adds nothing.
func MergeKnownMissing(existing []Section, catalog []CatalogEntry) []Section {
	ids := make(map[string]struct{}, len(existing))
	names := make(map[string]struct{}, len(existing))
	normNames := make(map[string]struct{}, len(existing))
	claim := func(id, name string) {
		ids[id] = struct{}{}
		names[strings.ToLower(name)] = struct{}{}
		normNames[NormalizeKey(name)] = struct{}{}
	}
	for _, s := range existing {
		claim(s.Identifier, s.Name)
	}

	ordered := make([]CatalogEntry, len(catalog))
	copy(ordered, catalog)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority < ordered[j].Priority
		}
		return ordered[i].Identifier < ordered[j].Identifier
	})

	out := make([]Section, len(existing), len(existing)+len(ordered))
	copy(out, existing)
	added := 0
	for _, e := range ordered {
		id := NormalizeKey(e.Identifier)
		if id == "" {
			id = NormalizeKey(e.Name)
		}
		name := e.Name
		if name == "" {
			name = SplitWords(e.Identifier)
		}

		_, idTaken := ids[id]
		_, nameTaken := names[strings.ToLower(name)]
		_, normTaken := normNames[NormalizeKey(name)]
		if idTaken || nameTaken || normTaken {
			continue
		}

		claim(id, name)
		out = append(out, Section{
			Identifier:               id,
			Name:                     name,
			Platforms:                copyStrings(e.Platforms),
			IsSynthetic:              true,
			ConfigurationIdentifiers: copyStrings(e.Identifiers),
			Parameters:               []Parameter{},
			Description:              e.Description,
			Category:                 e.Category,
			Priority:                 e.Priority,
		})
		added++
	}
	if added > 0 {
		logging.SectionsDebug("merged %d known-missing sections", added)
	}
	return out
}
