package cache

import (
	"time"

	"payloadforge/internal/store"
)

// FreshnessWindow is how long after generation a manifest counts as fresh.
const FreshnessWindow = 24 * time.Hour

// IsFresh reports whether m was generated less than FreshnessWindow before
// now. A nil manifest or a missing timestamp is stale. Staleness is
// advisory: stale entries are still served.
func IsFresh(m *store.Manifest, now time.Time) bool {
	if m == nil || m.GeneratedAt.IsZero() {
		return false
	}
	return now.Sub(m.GeneratedAt) < FreshnessWindow
}
