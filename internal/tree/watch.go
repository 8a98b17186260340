package tree

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ChangeStream opens a raw stream of change notifications for the tree.
type ChangeStream interface {
	Open(ctx context.Context) (io.ReadCloser, error)
}

// SnapshotHandler consumes full-tree snapshots.
type SnapshotHandler func(ctx context.Context, snap Snapshot)

// Watcher turns the change stream into full-tree snapshots: every put or
// patch event triggers a fresh read of the root, which is handed to the
// handler. Value-watch semantics — the handler always sees the whole tree,
// never a delta. Stream failures reconnect with exponential backoff.
type Watcher struct {
	stream ChangeStream
	store  Store
	handle SnapshotHandler
	log    *slog.Logger
}

// NewWatcher wires a change stream to a snapshot handler.
func NewWatcher(stream ChangeStream, store Store, handle SnapshotHandler, log *slog.Logger) *Watcher {
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{stream: stream, store: store, handle: handle, log: log}
}

// Run watches until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		body, err := w.stream.Open(ctx)
		if err != nil {
			wait := bo.NextBackOff()
			w.log.Warn("tree stream open failed", "err", err, "retry_in", wait)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		bo.Reset()
		w.consume(ctx, body)
	}
}

// consume reads SSE events until the stream ends or the context is
// cancelled. Returning lets Run reconnect.
func (w *Watcher) consume(ctx context.Context, body io.ReadCloser) {
	defer body.Close()

	// Unblock the scanner when the context ends.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-streamCtx.Done()
		body.Close()
	}()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var event string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			switch event {
			case "put", "patch":
				w.dispatch(ctx)
			case "keep-alive":
			case "cancel", "auth_revoked":
				w.log.Warn("tree stream closed by server", "event", event)
				return
			}
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		w.log.Warn("tree stream read failed", "err", err)
	}
}

// dispatch loads the current tree and hands it to the handler. An empty or
// missing tree is a valid (empty) snapshot.
func (w *Watcher) dispatch(ctx context.Context) {
	snap, err := w.store.Snapshot(ctx)
	if err != nil {
		w.log.Warn("tree snapshot read failed", "err", err)
		return
	}
	w.handle(ctx, snap)
}
