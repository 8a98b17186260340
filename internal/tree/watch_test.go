package tree

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedStream feeds prepared SSE bodies to the watcher, one per Open.
type scriptedStream struct {
	bodies chan io.ReadCloser
	opens  atomic.Int32
}

func newScriptedStream(bodies ...string) *scriptedStream {
	s := &scriptedStream{bodies: make(chan io.ReadCloser, len(bodies))}
	for _, b := range bodies {
		s.bodies <- io.NopCloser(strings.NewReader(b))
	}
	return s
}

func (s *scriptedStream) Open(ctx context.Context) (io.ReadCloser, error) {
	s.opens.Add(1)
	select {
	case body := <-s.bodies:
		return body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func runWatcher(t *testing.T, w *Watcher) (cancel func()) {
	t.Helper()
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	return func() {
		stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("watcher did not stop")
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWatcherDispatchesSnapshotOnEveryChange(t *testing.T) {
	store := NewMemoryStore()
	store.SetRequest("VM-01", &Request{Time: "T1", Amount: json.Number("500"), Location: "A1"})

	stream := newScriptedStream(
		"event: put\ndata: {\"path\":\"/\",\"data\":{}}\n\n" +
			"event: keep-alive\ndata: null\n\n" +
			"event: patch\ndata: {\"path\":\"/VM-01\",\"data\":{}}\n\n",
	)

	var snaps atomic.Int32
	var sawMachine atomic.Bool
	handler := func(ctx context.Context, snap Snapshot) {
		snaps.Add(1)
		if _, ok := snap["VM-01"]; ok {
			sawMachine.Store(true)
		}
	}

	stop := runWatcher(t, NewWatcher(stream, store, handler, discardLogger()))
	defer stop()

	require.Eventually(t, func() bool { return snaps.Load() == 2 }, 2*time.Second, 2*time.Millisecond)
	assert.True(t, sawMachine.Load(), "handler sees the full tree, not a delta")
}

func TestWatcherIgnoresKeepAlive(t *testing.T) {
	store := NewMemoryStore()
	stream := newScriptedStream("event: keep-alive\ndata: null\n\n")

	var snaps atomic.Int32
	handler := func(ctx context.Context, snap Snapshot) { snaps.Add(1) }

	stop := runWatcher(t, NewWatcher(stream, store, handler, discardLogger()))
	defer stop()

	require.Eventually(t, func() bool { return stream.opens.Load() >= 1 }, 2*time.Second, 2*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, snaps.Load())
}

func TestWatcherToleratesEmptyTree(t *testing.T) {
	store := NewMemoryStore()
	stream := newScriptedStream("event: put\ndata: {\"path\":\"/\",\"data\":null}\n\n")

	var got atomic.Int32
	handler := func(ctx context.Context, snap Snapshot) {
		assert.Empty(t, snap)
		got.Add(1)
	}

	stop := runWatcher(t, NewWatcher(stream, store, handler, discardLogger()))
	defer stop()

	require.Eventually(t, func() bool { return got.Load() == 1 }, 2*time.Second, 2*time.Millisecond)
}

func TestWatcherReopensAfterStreamEnds(t *testing.T) {
	store := NewMemoryStore()
	stream := newScriptedStream(
		"event: put\ndata: {}\n\n",
		"event: cancel\ndata: null\n\nevent: put\ndata: {}\n\n",
		"event: put\ndata: {}\n\n",
	)

	var snaps atomic.Int32
	handler := func(ctx context.Context, snap Snapshot) { snaps.Add(1) }

	stop := runWatcher(t, NewWatcher(stream, store, handler, discardLogger()))
	defer stop()

	// Body one ends after a put; body two is cancelled by the server before
	// its put is reached; body three delivers the third snapshot.
	require.Eventually(t, func() bool { return snaps.Load() == 2 }, 2*time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return stream.opens.Load() >= 3 }, 2*time.Second, 2*time.Millisecond)
}
