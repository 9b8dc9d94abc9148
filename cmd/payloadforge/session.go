package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"payloadforge/internal/cache"
	"payloadforge/internal/store"
)

// session owns the store and resolver for one command invocation.
type session struct {
	store    store.BlobStore
	closer   io.Closer
	resolver *cache.Resolver
}

func openSession(events cache.EventSink) (*session, error) {
	bs, err := store.Open(store.Backend(appConfig.Cache.Backend), appConfig.StoreLocation())
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", appConfig.Cache.Backend, err)
	}
	s := &session{store: bs}
	if c, ok := bs.(io.Closer); ok {
		s.closer = c
	}

	var source cache.Source
	if appConfig.Source.BaseURL != "" {
		source = cache.NewHTTPSource(appConfig.Source.BaseURL)
	}
	s.resolver = cache.NewResolver(cache.Options{
		Store:    bs,
		Source:   source,
		Settings: settingsStore,
		Fallback: cache.DefaultFallback{MainSpec: appConfig.Source.MainSpec},
		Events:   events,
	})
	return s, nil
}

// Close waits for write-backs before closing the store.
func (s *session) Close() {
	s.resolver.Close()
	if s.closer != nil {
		s.closer.Close()
	}
}

// commandContext applies --timeout and cancels on SIGINT/SIGTERM.
func commandContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancelTimeout := context.WithTimeout(parent, timeout)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return ctx, func() {
		stop()
		cancelTimeout()
	}
}
