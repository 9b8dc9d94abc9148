package cache

import (
	"encoding/json"
	"strings"
	"time"
)

// Document is a resolved JSON document. Body is shared with the memory
// tier and must be treated as read-only.
type Document struct {
	Name      string          `json:"name"`
	Body      json.RawMessage `json:"body"`
	Tier      Tier            `json:"tier"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// IsFallback reports whether the document is the built-in stand-in.
func (d *Document) IsFallback() bool {
	return d.Tier == TierFallback
}

// CanonicalName trims name and drops a trailing .json so that "wifi" and
// "wifi.json" share one cache entry.
func CanonicalName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) >= 5 && strings.EqualFold(name[len(name)-5:], ".json") {
		name = strings.TrimSpace(name[:len(name)-5])
	}
	return name
}

// FileName returns the store and source file name for a canonical name.
func FileName(name string) string {
	return name + ".json"
}
