// ABOUTME: Direct channel over Redis pub/sub, one channel per device.
// ABOUTME: The peer is reachable while it has a subscriber on its channel.
package sync

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DirectChannelName returns the pub/sub channel a device listens on.
func DirectChannelName(deviceID string) string {
	return "fitcore:" + deviceID + ":direct"
}

// RedisDirect is a DirectChannel between two devices sharing a Redis server.
type RedisDirect struct {
	client *redis.Client
	self   string
	peer   string
	logger *slog.Logger
}

// ConnectRedis opens a client for addr. It does not dial until first use.
func ConnectRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// NewRedisDirect creates the channel for self talking to peer.
func NewRedisDirect(client *redis.Client, self, peer string, logger *slog.Logger) *RedisDirect {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisDirect{client: client, self: self, peer: peer, logger: logger}
}

// Reachable reports whether the peer is subscribed right now.
func (r *RedisDirect) Reachable(ctx context.Context) bool {
	ch := DirectChannelName(r.peer)
	counts, err := r.client.PubSubNumSub(ctx, ch).Result()
	if err != nil {
		r.logger.Debug("reachability check failed", "component", "redis", "error", err)
		return false
	}
	return counts[ch] > 0
}

// Send publishes raw to the peer's channel.
func (r *RedisDirect) Send(ctx context.Context, raw []byte) error {
	n, err := r.client.Publish(ctx, DirectChannelName(r.peer), raw).Result()
	if err != nil {
		return fmt.Errorf("publish to %s: %w", r.peer, err)
	}
	if n == 0 {
		return ErrUnreachable
	}
	return nil
}

// Listen subscribes to this device's channel and passes every payload to fn
// until ctx is cancelled. It returns once the subscription fails or ctx ends.
func (r *RedisDirect) Listen(ctx context.Context, fn func([]byte)) error {
	pubsub := r.client.Subscribe(ctx, DirectChannelName(r.self))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", DirectChannelName(r.self), err)
	}
	r.logger.Info("listening for peer messages", "component", "redis", "channel", DirectChannelName(r.self))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			fn([]byte(msg.Payload))
		}
	}
}

// Ping checks the server connection.
func (r *RedisDirect) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}
