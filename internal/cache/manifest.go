package cache

import (
	"context"
	"sync"
	"sync/atomic"

	"payloadforge/internal/logging"
	"payloadforge/internal/store"
)

// manifestLoader memoizes the in-flight manifest load, not just its
// result, so callers arriving during the first load wait on it instead of
// issuing their own read. The outcome (including failure) is kept until
// reset.
type manifestLoader struct {
	mu    sync.Mutex
	cur   *manifestLoad
	loads atomic.Int64
}

type manifestLoad struct {
	done chan struct{}
	m    *store.Manifest
	err  error
}

func (l *manifestLoader) get(ctx context.Context, bs store.BlobStore) (*store.Manifest, error) {
	l.mu.Lock()
	cur := l.cur
	owner := cur == nil
	if owner {
		cur = &manifestLoad{done: make(chan struct{})}
		l.cur = cur
	}
	l.mu.Unlock()

	if owner {
		l.loads.Add(1)
		// The load outlives the first caller's context since others share it.
		cur.m, cur.err = bs.Manifest(context.WithoutCancel(ctx))
		close(cur.done)
		if cur.err != nil {
			logging.ManifestWarn("manifest unavailable: %v", cur.err)
		} else {
			logging.Manifest("manifest loaded: %d files, generated %s", cur.m.TotalFiles, cur.m.GeneratedAt.Format("2006-01-02T15:04:05Z07:00"))
		}
		return cur.m, cur.err
	}

	select {
	case <-cur.done:
		return cur.m, cur.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// peek returns the settled load, if any, without starting one.
func (l *manifestLoader) peek() (*manifestLoad, bool) {
	l.mu.Lock()
	cur := l.cur
	l.mu.Unlock()
	if cur == nil {
		return nil, false
	}
	select {
	case <-cur.done:
		return cur, true
	default:
		return nil, false
	}
}

func (l *manifestLoader) reset() {
	l.mu.Lock()
	l.cur = nil
	l.mu.Unlock()
}
