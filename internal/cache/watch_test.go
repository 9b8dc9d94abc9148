package cache

import (
	"context"
	"testing"
	"time"

	"payloadforge/internal/store"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchManifestReinitializes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dirPath := t.TempDir()
	dir := store.NewDirStore(dirPath)
	require.NoError(t, dir.Put(ctx, "a.json", []byte(`{}`)))

	r := newTestResolver(t, Options{Store: dir, Settings: fastSettings(false)})
	_, err := r.Resolve(ctx, "b")
	require.NoError(t, err)
	require.True(t, r.ManifestSettled())

	w, err := r.WatchManifest(ctx, dirPath)
	require.NoError(t, err)
	defer w.Stop()

	// The export job publishes a new file.
	require.NoError(t, dir.Put(ctx, "b.json", []byte(`{"new":true}`)))

	require.Eventually(t, func() bool { return w.Reloads() >= 1 }, 5*time.Second, 20*time.Millisecond)

	doc, err := r.Resolve(ctx, "b", WithForceRefresh())
	require.NoError(t, err)
	assert.Equal(t, TierPersisted, doc.Tier)
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w, err := NewManifestWatcher(t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	w.handleEvent(fsEvent("other.json"))
	w.flush()
	assert.Zero(t, w.Reloads())
}

func fsEvent(name string) fsnotify.Event {
	return fsnotify.Event{Name: name, Op: fsnotify.Write}
}
