package stream

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rfoxley/hearthsync/internal/realtime"
)

// Frame types on the wire.
const (
	frameTypeSubscribe   = "subscribe"
	frameTypeUnsubscribe = "unsubscribe"
	frameTypeSnapshot    = "snapshot"
	frameTypeWrite       = "write"
	frameTypeError       = "error"
)

// frame is the JSON envelope for every message in either direction.
// Data carries the full value for snapshot frames; Value carries the
// written value for write frames.
type frame struct {
	Type      string         `json:"type"`
	Path      string         `json:"path,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Value     any            `json:"value,omitempty"`
	Message   string         `json:"message,omitempty"`
}

// subscriberBuffer is the per-subscriber channel depth. Snapshots are full
// values, so when a subscriber lags the oldest buffered entry is evicted in
// favour of the newest.
const subscriberBuffer = 8

// feed fans one path's snapshots out to its subscribers.
type feed struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch chan realtime.Snapshot
}

func (f *feed) dispatch(snap realtime.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		sub.deliver(snap)
	}
}

// closeAll closes every subscriber channel. Called once during shutdown
// while the feed is already detached from the client.
func (f *feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		close(sub.ch)
		delete(f.subs, sub)
	}
}

// deliver sends without blocking, evicting the oldest buffered snapshot
// when the subscriber is behind.
func (s *subscriber) deliver(snap realtime.Snapshot) {
	for {
		select {
		case s.ch <- snap:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Subscribe opens a snapshot stream for the given store path.
//
// The first Subscribe for a path sends a subscribe frame; the server
// responds with the current value and every subsequent change. Later
// Subscribe calls for the same path share the server subscription. The
// returned channel closes when ctx is cancelled or the connection drops.
func (c *Client) Subscribe(ctx context.Context, path string) (<-chan realtime.Snapshot, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	if c.isClosed() {
		return nil, ErrClosed
	}

	sub := &subscriber{ch: make(chan realtime.Snapshot, subscriberBuffer)}

	c.feedMu.Lock()
	f, exists := c.feeds[path]
	if !exists {
		f = &feed{subs: make(map[*subscriber]struct{})}
		c.feeds[path] = f
	}
	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	c.feedMu.Unlock()

	if !exists {
		if err := c.enqueue(frame{Type: frameTypeSubscribe, Path: path}); err != nil {
			c.dropSubscriber(path, f, sub)
			return nil, err
		}
	}

	go func() {
		select {
		case <-ctx.Done():
			if c.dropSubscriber(path, f, sub) {
				close(sub.ch)
			}
		case <-c.closed:
			// shutdown closes subscriber channels via closeAll
		}
	}()

	return sub.ch, nil
}

// dispatchSnapshot routes a snapshot frame to the feed for its path.
func (c *Client) dispatchSnapshot(f frame) {
	if f.Path == "" || f.Data == nil {
		if logger := c.getLogger(); logger != nil {
			logger.Warn("snapshot frame missing path or data")
		}
		return
	}

	c.feedMu.Lock()
	fd := c.feeds[f.Path]
	c.feedMu.Unlock()
	if fd == nil {
		return
	}
	fd.dispatch(realtime.Snapshot(f.Data))
}

// dropSubscriber detaches a subscriber and unsubscribes the path when its
// feed empties. It reports whether the subscriber was still attached, so
// the caller closes the channel exactly once even when shutdown races.
func (c *Client) dropSubscriber(path string, f *feed, sub *subscriber) bool {
	c.feedMu.Lock()
	f.mu.Lock()
	_, attached := f.subs[sub]
	delete(f.subs, sub)
	empty := attached && len(f.subs) == 0
	f.mu.Unlock()
	if empty {
		delete(c.feeds, path)
	}
	c.feedMu.Unlock()

	if empty && !c.isClosed() {
		//nolint:errcheck // Best-effort; a dropped unsubscribe only costs idle frames
		c.enqueue(frame{Type: frameTypeUnsubscribe, Path: path})
	}
	return attached
}

// Write sends a value to a path, fire and forget. A nil error means the
// frame was handed to the writer goroutine; the accepted value is observed
// back through the subscription stream.
func (c *Client) Write(ctx context.Context, path string, value any) error {
	if path == "" {
		return ErrInvalidPath
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isClosed() {
		return ErrClosed
	}

	return c.enqueue(frame{
		Type:      frameTypeWrite,
		Path:      path,
		RequestID: uuid.NewString(),
		Value:     value,
	})
}
