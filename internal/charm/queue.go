// ABOUTME: Queued channel storing peer messages as Charm KV entries.
// ABOUTME: Keys are queue:<device>:<ulid>; the recipient drains them in order, deleting once applied.
package charm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"
)

const queuePrefix = "queue:"

// QueueKey returns the key for a message addressed to device.
func QueueKey(device string, id ulid.ULID) string {
	return queuePrefix + device + ":" + id.String()
}

// Queue is a store-and-forward channel between two devices sharing a Charm
// account.
type Queue struct {
	client  *Client
	self    string
	peer    string
	logger  *slog.Logger
	apply   func(ctx context.Context, raw []byte) error
}

// NewQueue creates the queue for self sending to peer.
func NewQueue(client *Client, self, peer string, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{client: client, self: self, peer: peer, logger: logger}
}

// Enqueue stores raw for the peer. The write syncs to Charm Cloud when
// possible; otherwise the next successful sync carries it.
func (q *Queue) Enqueue(_ context.Context, raw []byte) error {
	key := QueueKey(q.peer, ulid.Make())
	if err := q.client.set(key, raw); err != nil {
		return fmt.Errorf("enqueue for %s: %w", q.peer, err)
	}
	return nil
}

// Listen registers a handler that consumes each message before it returns.
func (q *Queue) Listen(fn func([]byte)) {
	q.apply = func(_ context.Context, raw []byte) error {
		fn(raw)
		return nil
	}
}

// Deliver registers the function Drain hands messages to. A message is
// deleted only after fn returns nil; on error it stays queued and the drain
// stops so later messages keep their order.
func (q *Queue) Deliver(fn func(ctx context.Context, raw []byte) error) {
	q.apply = fn
}

// Drain pulls remote entries and hands every message addressed to this
// device to the registered function, oldest first.
func (q *Queue) Drain(ctx context.Context) (int, error) {
	if q.apply == nil {
		return 0, nil
	}
	if err := q.client.Sync(); err != nil {
		q.logger.Warn("charm sync failed, draining local copy", "component", "charm", "error", err)
	}
	keys, err := q.client.keysWithPrefix(queuePrefix + q.self + ":")
	if err != nil {
		return 0, fmt.Errorf("list queue: %w", err)
	}

	delivered := 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return delivered, err
		}
		raw, err := q.client.get(key)
		if err != nil {
			q.logger.Warn("read queued message failed", "component", "charm", "key", key, "error", err)
			continue
		}
		if err := q.apply(ctx, raw); err != nil {
			return delivered, fmt.Errorf("apply queued message %s: %w", key, err)
		}
		delivered++
		if err := q.client.delete(key); err != nil {
			q.logger.Warn("delete queued message failed", "component", "charm", "key", key, "error", err)
		}
	}
	return delivered, nil
}

// Pending counts messages waiting for this device in the local copy.
func (q *Queue) Pending() (int, error) {
	keys, err := q.client.keysWithPrefix(queuePrefix + q.self + ":")
	if err != nil {
		return 0, fmt.Errorf("list queue: %w", err)
	}
	return len(keys), nil
}

// Outbox counts messages this device queued that the peer has not drained.
func (q *Queue) Outbox() (int, error) {
	keys, err := q.client.keysWithPrefix(queuePrefix + q.peer + ":")
	if err != nil {
		return 0, fmt.Errorf("list outbox: %w", err)
	}
	return len(keys), nil
}
