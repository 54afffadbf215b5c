package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, events []Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recorder) snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func startWatcher(t *testing.T, root string, rec *recorder) *Watcher {
	t.Helper()
	w, err := New(root, rec.handle, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(func() { _ = w.Close() })
	return w
}

func TestWatcherReportsWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	path := filepath.Join(dir, "main.jac")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("walker w {}\n"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return len(rec.snapshot()) > 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	for _, e := range rec.snapshot() {
		assert.Equal(t, Event{Path: path}, e)
	}
}

func TestWatcherReportsRemovals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.jac")
	require.NoError(t, os.WriteFile(path, []byte("node n {}\n"), 0o644))

	rec := &recorder{}
	startWatcher(t, dir, rec)
	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		events := rec.snapshot()
		return len(events) == 1 && events[0].Removed
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	sub := filepath.Join(dir, "lib")
	require.NoError(t, os.Mkdir(sub, 0o755))
	path := filepath.Join(sub, "models.jac")
	require.Eventually(t, func() bool {
		// The directory watch is added asynchronously; rewrite until seen.
		_ = os.WriteFile(path, []byte("node n {}\n"), 0o644)
		for _, e := range rec.snapshot() {
			if e.Path == path {
				return true
			}
		}
		return false
	}, 2*time.Second, 50*time.Millisecond)
}

func TestSettledRespectsDebounce(t *testing.T) {
	t.Parallel()
	w := &Watcher{debounce: time.Second, pending: map[string]time.Time{}}
	now := time.Now()
	w.pending["/w/old.jac"] = now.Add(-2 * time.Second)
	w.pending["/w/new.jac"] = now

	events := w.settled(now)
	require.Len(t, events, 1)
	assert.Equal(t, "/w/old.jac", events[0].Path)
	assert.True(t, events[0].Removed)
	assert.Contains(t, w.pending, "/w/new.jac")
}
