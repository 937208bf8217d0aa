// ABOUTME: Tests for the Redis direct channel against an in-process miniredis.
// ABOUTME: Covers reachability by subscriber count and delivery to a listener.
package sync

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisPair(t *testing.T) (*RedisDirect, *RedisDirect) {
	t.Helper()
	s := miniredis.RunT(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	phoneClient := redis.NewClient(&redis.Options{Addr: s.Addr()})
	watchClient := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		_ = phoneClient.Close()
		_ = watchClient.Close()
	})
	return NewRedisDirect(phoneClient, "phone", "watch", logger),
		NewRedisDirect(watchClient, "watch", "phone", logger)
}

func TestRedisDirect_UnreachableWithoutListener(t *testing.T) {
	phone, _ := newRedisPair(t)
	ctx := context.Background()

	require.NoError(t, phone.Ping(ctx))
	assert.False(t, phone.Reachable(ctx))
	assert.ErrorIs(t, phone.Send(ctx, []byte("hello")), ErrUnreachable)
}

func TestRedisDirect_DeliversToListener(t *testing.T) {
	phone, watch := newRedisPair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan []byte, 1)
	done := make(chan error, 1)
	go func() { done <- watch.Listen(ctx, func(raw []byte) { got <- raw }) }()

	require.Eventually(t, func() bool { return phone.Reachable(ctx) }, time.Second, 10*time.Millisecond)
	require.NoError(t, phone.Send(ctx, []byte("hello")))

	select {
	case raw := <-got:
		assert.Equal(t, "hello", string(raw))
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("listener did not stop")
	}
}

func TestDirectChannelName(t *testing.T) {
	assert.Equal(t, "fitcore:watch:direct", DirectChannelName("watch"))
}
