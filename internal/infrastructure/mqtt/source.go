package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rfoxley/hearthsync/internal/realtime"
)

// subscriberBuffer is the per-subscriber channel depth. When a subscriber
// falls behind, the oldest buffered snapshot is dropped in favour of the
// newest; snapshots are full values, so the latest one is always sufficient.
const subscriberBuffer = 8

// feed fans one topic's messages out to its subscribers.
type feed struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	ch chan realtime.Snapshot
}

// dispatch decodes a state payload and delivers it to every subscriber.
func (f *feed) dispatch(_ string, payload []byte) error {
	var value map[string]any
	if err := json.Unmarshal(payload, &value); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	snap := realtime.Snapshot(value)

	f.mu.Lock()
	defer f.mu.Unlock()
	for sub := range f.subs {
		sub.deliver(snap)
	}
	return nil
}

// deliver sends a snapshot without blocking: if the subscriber's buffer is
// full, the oldest entry is evicted so the channel always converges on the
// latest state.
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
// The path is mapped to its retained state topic, so the first snapshot
// (the current value) arrives as soon as the broker processes the
// subscription. The returned channel is closed when ctx is cancelled.
//
// Multiple subscriptions to the same path share a single broker
// subscription; the broker subscription is released when the last
// subscriber's context is cancelled.
func (c *Client) Subscribe(ctx context.Context, path string) (<-chan realtime.Snapshot, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	topic := c.topics.State(path)
	sub := &subscriber{ch: make(chan realtime.Snapshot, subscriberBuffer)}

	c.feedMu.Lock()
	f, exists := c.feeds[topic]
	if !exists {
		f = &feed{subs: make(map[*subscriber]struct{})}
		c.feeds[topic] = f
	}
	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()
	c.feedMu.Unlock()

	if !exists {
		token := c.client.Subscribe(topic, byte(c.cfg.QoS), c.wrapHandler(f.dispatch))
		if !token.WaitTimeout(defaultPublishTimeout) {
			c.dropSubscriber(topic, f, sub)
			return nil, fmt.Errorf("%w: timeout after %v", ErrSubscribeFailed, defaultPublishTimeout)
		}
		if err := token.Error(); err != nil {
			c.dropSubscriber(topic, f, sub)
			return nil, fmt.Errorf("%w: %w", ErrSubscribeFailed, err)
		}
	}

	go func() {
		<-ctx.Done()
		c.dropSubscriber(topic, f, sub)
		close(sub.ch)
	}()

	return sub.ch, nil
}

// dropSubscriber detaches a subscriber and unsubscribes the topic when the
// feed has no subscribers left.
func (c *Client) dropSubscriber(topic string, f *feed, sub *subscriber) {
	c.feedMu.Lock()
	f.mu.Lock()
	delete(f.subs, sub)
	empty := len(f.subs) == 0
	f.mu.Unlock()
	if empty {
		delete(c.feeds, topic)
	}
	c.feedMu.Unlock()

	if empty && c.IsConnected() {
		token := c.client.Unsubscribe(topic)
		token.WaitTimeout(defaultPublishTimeout)
	}
}

// writeEnvelope is the command payload published for a store write.
// RequestID lets the remote end deduplicate QoS 1 redeliveries.
type writeEnvelope struct {
	RequestID string `json:"request_id"`
	Value     any    `json:"value"`
	Timestamp string `json:"timestamp"`
}

// Write publishes a value to a path's command topic, fire and forget.
// A nil return means the broker acknowledged the publish; the accepted
// value is observed back through the state subscription.
func (c *Client) Write(ctx context.Context, path string, value any) error {
	if path == "" {
		return ErrInvalidPath
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt write: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	payload, err := json.Marshal(writeEnvelope{
		RequestID: uuid.NewString(),
		Value:     value,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	token := c.client.Publish(c.topics.Command(path), byte(c.cfg.QoS), false, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}
