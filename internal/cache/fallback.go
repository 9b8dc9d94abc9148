package cache

import (
	"encoding/json"

	"payloadforge/internal/config"
)

// FallbackProvider supplies the last-resort document for a name. It must
// always return a valid JSON document.
type FallbackProvider interface {
	Fallback(name string) json.RawMessage
}

var (
	mainSpecFallback = json.RawMessage(`{"topicSections":[],"references":{},"metadata":{"fallback":true}}`)
	sectionFallback  = json.RawMessage(`{"parameters":[],"metadata":{"fallback":true}}`)
)

// DefaultFallback returns an empty main specification for MainSpec and an
// empty parameter list for every other name. An empty MainSpec means
// config.DefaultMainSpec.
type DefaultFallback struct {
	MainSpec string
}

func (f DefaultFallback) Fallback(name string) json.RawMessage {
	main := f.MainSpec
	if main == "" {
		main = config.DefaultMainSpec
	}
	body := sectionFallback
	if CanonicalName(name) == CanonicalName(main) {
		body = mainSpecFallback
	}
	out := make(json.RawMessage, len(body))
	copy(out, body)
	return out
}
