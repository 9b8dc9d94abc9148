package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"payloadforge/internal/config"
	"payloadforge/internal/logging"
	"payloadforge/internal/sections"
	"payloadforge/internal/store"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// writeBackTimeout bounds one asynchronous persisted-store write.
const writeBackTimeout = 30 * time.Second

// SettingsSource supplies the runtime settings. *config.Store satisfies it.
type SettingsSource interface {
	Snapshot() config.Settings
}

// Options wires a Resolver's collaborators. Store and Source may be nil,
// in which case that tier always falls through.
type Options struct {
	Store    store.BlobStore
	Source   Source
	Settings SettingsSource
	Fallback FallbackProvider
	Events   EventSink
	Now      func() time.Time
}

// Resolver resolves logical document names through the tier chain. It is
// safe for concurrent use; each resolution walks its tiers sequentially.
type Resolver struct {
	store    store.BlobStore
	source   Source
	settings SettingsSource
	fallback FallbackProvider
	events   EventSink
	now      func() time.Time

	memory   *memoryTier
	manifest manifestLoader
	group    singleflight.Group

	writes  sync.WaitGroup
	pending atomic.Int64
	flights sync.WaitGroup

	hits     [tierCount]atomic.Int64
	failures [tierCount]atomic.Int64
}

// NewResolver builds a resolver. A nil Settings uses the defaults; a nil
// Fallback uses DefaultFallback for config.DefaultMainSpec.
func NewResolver(opts Options) *Resolver {
	r := &Resolver{
		store:    opts.Store,
		source:   opts.Source,
		settings: opts.Settings,
		fallback: opts.Fallback,
		events:   opts.Events,
		now:      opts.Now,
		memory:   newMemoryTier(),
	}
	if r.fallback == nil {
		r.fallback = DefaultFallback{MainSpec: config.DefaultMainSpec}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// ResolveOption adjusts one resolution.
type ResolveOption func(*resolveOptions)

type resolveOptions struct {
	forceRefresh bool
}

// WithForceRefresh skips the memory tier.
func WithForceRefresh() ResolveOption {
	return func(o *resolveOptions) { o.forceRefresh = true }
}

// Resolve returns the document for name. It only fails for an empty name;
// when every other tier fails the fallback document is returned.
func (r *Resolver) Resolve(ctx context.Context, name string, opts ...ResolveOption) (*Document, error) {
	logical := CanonicalName(name)
	if logical == "" {
		return nil, ErrEmptyName
	}
	var ro resolveOptions
	for _, opt := range opts {
		opt(&ro)
	}

	if !ro.forceRefresh {
		if doc, ok := r.memory.get(logical); ok {
			r.hit(TierMemory, logical)
			logging.CacheDebug("memory hit for %s", logical)
			return doc, nil
		}
	}

	if ctx.Err() != nil {
		return r.fallbackDocument(logical), nil
	}

	key := logical
	if ro.forceRefresh {
		key = "force\x00" + logical
	}
	// The flight serves every joined caller, so it must outlive any one of
	// them. The retry policy's per-attempt timeouts bound it.
	flightCtx := context.WithoutCancel(ctx)
	r.flights.Add(1)
	ch := r.group.DoChan(key, func() (any, error) {
		// A flight that finished between the memory check and DoChan
		// already populated the memory tier.
		if !ro.forceRefresh {
			if doc, ok := r.memory.get(logical); ok {
				return doc, nil
			}
		}
		return r.resolveRemote(flightCtx, logical), nil
	})

	select {
	case res := <-ch:
		r.flights.Done()
		return res.Val.(*Document), nil
	case <-ctx.Done():
		go func() {
			<-ch
			r.flights.Done()
		}()
		logging.CacheDebug("caller left resolution of %s: %v", logical, ctx.Err())
		return r.fallbackDocument(logical), nil
	}
}

// ResolveSection resolves the document of a section by identifier. The
// identifier is normalized the same way section identifiers are built.
func (r *Resolver) ResolveSection(ctx context.Context, identifier string, opts ...ResolveOption) (*Document, error) {
	key := sections.NormalizeKey(CanonicalName(identifier))
	if key == "" {
		return nil, ErrEmptyName
	}
	return r.Resolve(ctx, key, opts...)
}

func (r *Resolver) snapshot() config.Settings {
	if r.settings == nil {
		return config.DefaultSettings()
	}
	return r.settings.Snapshot()
}

// resolveRemote walks persisted and network tiers in mode order, then the
// fallback.
func (r *Resolver) resolveRemote(ctx context.Context, logical string) *Document {
	timer := logging.StartTimer(logging.CategoryCache, "resolve "+logical)
	defer timer.StopWithThreshold(2 * time.Second)

	settings := r.snapshot()
	file := FileName(logical)

	order := []Tier{TierPersisted, TierNetwork}
	if settings.UseLiveSource {
		order = []Tier{TierNetwork, TierPersisted}
	}

	for _, tier := range order {
		var (
			doc *Document
			err error
		)
		switch tier {
		case TierPersisted:
			doc, err = r.fromPersisted(ctx, logical, file, settings)
		case TierNetwork:
			doc, err = r.fromNetwork(ctx, logical, file, settings)
		}
		if err != nil {
			r.unavailable(tier, logical, err)
			continue
		}

		r.memory.put(logical, doc)
		r.hit(tier, logical)
		logging.Cache("resolved %s from %s tier", logical, tier)
		if tier == TierNetwork && settings.CacheEnabled && r.store != nil {
			r.writeBack(logical, file, doc.Body)
		}
		return doc
	}

	logging.CacheWarn("all tiers failed for %s, serving fallback document", logical)
	return r.fallbackDocument(logical)
}

// fallbackDocument is never stored in the memory tier.
func (r *Resolver) fallbackDocument(logical string) *Document {
	doc := &Document{
		Name:      logical,
		Body:      r.fallback.Fallback(logical),
		Tier:      TierFallback,
		FetchedAt: r.now(),
	}
	r.hits[TierFallback].Add(1)
	r.emit(Event{Kind: EventFallback, Name: logical, Tier: TierFallback})
	return doc
}

func (r *Resolver) fromPersisted(ctx context.Context, logical, file string, settings config.Settings) (*Document, error) {
	if !settings.CacheEnabled {
		return nil, ErrCacheDisabled
	}
	if r.store == nil {
		return nil, ErrNoStore
	}

	m, err := r.manifest.get(ctx, r.store)
	if err != nil {
		return nil, err
	}
	info, ok := m.Lookup(file)
	if !ok {
		return nil, ErrNotInManifest
	}

	body, err := r.store.Get(ctx, file)
	if err != nil {
		return nil, err
	}
	switch {
	case info.Checksum == "":
	case !isSHA256Hex(info.Checksum):
		logging.CacheDebug("not verifying %s: checksum %q is not sha256", file, info.Checksum)
	case !strings.EqualFold(info.Checksum, store.Checksum(body)):
		return nil, fmt.Errorf("%w: %s", ErrChecksumMismatch, file)
	}
	if !json.Valid(body) {
		return nil, ErrInvalidJSON
	}
	return &Document{Name: logical, Body: body, Tier: TierPersisted, FetchedAt: r.now()}, nil
}

// isSHA256Hex reports whether sum looks like a hex sha256 digest. Manifests
// written with another algorithm are not verified.
func isSHA256Hex(sum string) bool {
	if len(sum) != 2*sha256.Size {
		return false
	}
	_, err := hex.DecodeString(sum)
	return err == nil
}

func (r *Resolver) fromNetwork(ctx context.Context, logical, file string, settings config.Settings) (*Document, error) {
	if r.source == nil {
		return nil, ErrNoSource
	}

	policy := retryPolicy{
		Retries: settings.RetryAttempts,
		Delay:   settings.RetryDelay(),
		Timeout: settings.RequestTimeout(),
	}
	body, err := withRetry(ctx, policy, file, func(ctx context.Context) ([]byte, error) {
		body, err := r.source.Fetch(ctx, file)
		if err != nil {
			return nil, err
		}
		if !json.Valid(body) {
			return nil, ErrInvalidJSON
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}
	return &Document{Name: logical, Body: body, Tier: TierNetwork, FetchedAt: r.now()}, nil
}

// writeBack stores a network result in the persisted tier in the
// background. Failures are logged and emitted, never returned.
func (r *Resolver) writeBack(logical, file string, body []byte) {
	r.writes.Add(1)
	r.pending.Add(1)
	go func() {
		defer r.writes.Done()
		defer r.pending.Add(-1)

		ctx, cancel := context.WithTimeout(context.Background(), writeBackTimeout)
		defer cancel()

		if err := r.store.Put(ctx, file, body); err != nil {
			logging.StoreWarn("write-back of %s failed: %v", file, err)
			r.emit(Event{Kind: EventWriteBackFailed, Name: logical, Tier: TierPersisted, Err: err})
			return
		}
		r.emit(Event{Kind: EventWriteBack, Name: logical, Tier: TierPersisted})
	}()
}

func (r *Resolver) hit(tier Tier, logical string) {
	r.hits[tier].Add(1)
	r.emit(Event{Kind: EventHit, Name: logical, Tier: tier})
}

func (r *Resolver) unavailable(tier Tier, logical string, err error) {
	r.failures[tier].Add(1)
	tierErr := &TierUnavailableError{Tier: tier, Name: logical, Err: err}
	if errors.Is(err, ErrCacheDisabled) || errors.Is(err, ErrNotInManifest) || errors.Is(err, store.ErrNoManifest) {
		logging.CacheDebug("%v", tierErr)
	} else {
		logging.CacheWarn("%v", tierErr)
	}
	r.emit(Event{Kind: EventTierUnavailable, Name: logical, Tier: tier, Err: tierErr})
}

func (r *Resolver) emit(e Event) {
	if r.events == nil {
		return
	}
	e.ID = uuid.New()
	e.At = r.now()
	r.events.Emit(e)
}

// Manifest returns the session manifest, loading it on first use.
func (r *Resolver) Manifest(ctx context.Context) (*store.Manifest, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	return r.manifest.get(ctx, r.store)
}

// ClearMemory empties the memory tier.
func (r *Resolver) ClearMemory() {
	n := r.memory.clear()
	logging.Cache("cleared %d memory entries", n)
	r.emit(Event{Kind: EventMemoryCleared})
}

// Reinitialize drops the memoized manifest so the next persisted lookup
// reloads it. The memory tier is kept.
func (r *Resolver) Reinitialize() {
	r.manifest.reset()
	logging.Manifest("manifest marked for reload")
	r.emit(Event{Kind: EventReinitialized})
}

// Close waits for in-flight resolutions and pending write-backs. The store
// is owned by the caller.
func (r *Resolver) Close() error {
	r.flights.Wait()
	r.writes.Wait()
	return nil
}
