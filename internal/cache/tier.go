// Package cache resolves logical document names through an ordered chain
// of tiers: memory, persisted store, network source and a built-in
// fallback. Resolution never fails for a non-empty name.
package cache

import "fmt"

// Tier identifies where a document came from.
type Tier int

const (
	TierMemory Tier = iota + 1
	TierPersisted
	TierNetwork
	TierFallback
)

// tierCount sizes per-tier counter arrays (index 0 unused).
const tierCount = int(TierFallback) + 1

func (t Tier) String() string {
	switch t {
	case TierMemory:
		return "memory"
	case TierPersisted:
		return "persisted"
	case TierNetwork:
		return "network"
	case TierFallback:
		return "fallback"
	default:
		return fmt.Sprintf("tier(%d)", int(t))
	}
}

// MarshalText renders the tier name in JSON output.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}
