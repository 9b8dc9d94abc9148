package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyName is the only error Resolve returns.
	ErrEmptyName = errors.New("document name is empty")

	ErrNoStore          = errors.New("no persisted store configured")
	ErrCacheDisabled    = errors.New("persisted cache disabled")
	ErrNotInManifest    = errors.New("file not listed in manifest")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrInvalidJSON      = errors.New("document is not valid JSON")
	ErrNoSource         = errors.New("no network source configured")
)

// TierUnavailableError records why one tier could not serve a name. It is
// logged and emitted as an event; resolution continues with the next tier.
type TierUnavailableError struct {
	Tier Tier
	Name string
	Err  error
}

func (e *TierUnavailableError) Error() string {
	return fmt.Sprintf("%s tier unavailable for %s: %v", e.Tier, e.Name, e.Err)
}

func (e *TierUnavailableError) Unwrap() error {
	return e.Err
}
