package cache

import (
	"context"
	"time"
)

// Diagnostics is a point-in-time view of resolver state.
type Diagnostics struct {
	ManifestLoaded bool             `json:"manifestLoaded"`
	ManifestError  string           `json:"manifestError,omitempty"`
	Fresh          bool             `json:"fresh"`
	GeneratedAt    time.Time        `json:"generatedAt,omitempty"`
	TotalFiles     int              `json:"totalFiles"`
	MemoryEntries  int              `json:"memoryEntries"`
	PendingWrites  int64            `json:"pendingWrites"`
	Hits           map[string]int64 `json:"hits"`
	Failures       map[string]int64 `json:"failures"`
}

// Diagnostics loads the manifest if needed and reports resolver state.
func (r *Resolver) Diagnostics(ctx context.Context) Diagnostics {
	d := Diagnostics{
		MemoryEntries: r.memory.len(),
		PendingWrites: r.pending.Load(),
		Hits:          make(map[string]int64),
		Failures:      make(map[string]int64),
	}

	m, err := r.Manifest(ctx)
	if err != nil {
		d.ManifestError = err.Error()
	} else {
		d.ManifestLoaded = true
		d.GeneratedAt = m.GeneratedAt
		d.TotalFiles = m.TotalFiles
		d.Fresh = IsFresh(m, r.now())
	}

	for _, tier := range []Tier{TierMemory, TierPersisted, TierNetwork, TierFallback} {
		d.Hits[tier.String()] = r.hits[tier].Load()
		d.Failures[tier.String()] = r.failures[tier].Load()
	}
	return d
}

// ManifestSettled reports whether a manifest load has completed this
// session, without starting one.
func (r *Resolver) ManifestSettled() bool {
	_, ok := r.manifest.peek()
	return ok
}
