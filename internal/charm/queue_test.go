// ABOUTME: Tests for the Charm queue and gateway against an in-memory KV.
// ABOUTME: Covers key layout, ordered drain with deletion and read-only mode.
package charm

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/fitcore/internal/storage"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memKV struct {
	data     map[string][]byte
	readOnly bool
	syncs    int
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Set(key, value []byte) error {
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

func (m *memKV) Get(key []byte) ([]byte, error) {
	v, ok := m.data[string(key)]
	if !ok {
		return nil, badger.ErrKeyNotFound
	}
	return v, nil
}

func (m *memKV) Delete(key []byte) error {
	delete(m.data, string(key))
	return nil
}

func (m *memKV) Keys() ([][]byte, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(keys)))
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out, nil
}

func (m *memKV) Sync() error {
	m.syncs++
	return nil
}

func (m *memKV) IsReadOnly() bool { return m.readOnly }
func (m *memKV) Close() error     { return nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueueKey(t *testing.T) {
	id := ulid.Make()
	assert.Equal(t, "queue:watch:"+id.String(), QueueKey("watch", id))
}

func TestQueue_EnqueueDrainInOrder(t *testing.T) {
	store := newMemKV()
	client := NewClient(store)
	phone := NewQueue(client, "phone", "watch", quietLogger())
	watch := NewQueue(client, "watch", "phone", quietLogger())
	ctx := context.Background()

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, phone.Enqueue(ctx, []byte(msg)))
	}
	require.NoError(t, watch.Enqueue(ctx, []byte("for phone")))

	for k := range store.data {
		assert.True(t, strings.HasPrefix(k, "queue:"), k)
	}
	out, err := phone.Outbox()
	require.NoError(t, err)
	assert.Equal(t, 3, out)

	var got []string
	watch.Listen(func(raw []byte) { got = append(got, string(raw)) })
	n, err := watch.Drain(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"one", "two", "three"}, got)
	pending, err := watch.Pending()
	require.NoError(t, err)
	assert.Equal(t, 0, pending)
	phonePending, err := phone.Pending()
	require.NoError(t, err)
	assert.Equal(t, 1, phonePending, "messages for the other device stay")
	assert.Greater(t, store.syncs, 0)
}

func TestQueue_DeleteWaitsForApply(t *testing.T) {
	client := NewClient(newMemKV())
	phone := NewQueue(client, "phone", "watch", quietLogger())
	watch := NewQueue(client, "watch", "phone", quietLogger())
	ctx := context.Background()
	for _, msg := range []string{"one", "two"} {
		require.NoError(t, phone.Enqueue(ctx, []byte(msg)))
	}

	var seenPending []int
	watch.Deliver(func(_ context.Context, raw []byte) error {
		n, err := watch.Pending()
		require.NoError(t, err)
		seenPending = append(seenPending, n)
		return nil
	})
	n, err := watch.Drain(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, []int{2, 1}, seenPending, "key is present while its message is applied")
}

func TestQueue_FailedApplyKeepsMessage(t *testing.T) {
	client := NewClient(newMemKV())
	phone := NewQueue(client, "phone", "watch", quietLogger())
	watch := NewQueue(client, "watch", "phone", quietLogger())
	ctx := context.Background()
	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, phone.Enqueue(ctx, []byte(msg)))
	}

	var got []string
	watch.Deliver(func(_ context.Context, raw []byte) error {
		if string(raw) == "two" {
			return context.Canceled
		}
		got = append(got, string(raw))
		return nil
	})
	n, err := watch.Drain(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, n)
	pending, err := watch.Pending()
	require.NoError(t, err)
	assert.Equal(t, 2, pending, "unapplied messages stay queued")

	watch.Listen(func(raw []byte) { got = append(got, string(raw)) })
	n, err = watch.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestQueue_DrainWithoutHandlerKeepsMessages(t *testing.T) {
	client := NewClient(newMemKV())
	phone := NewQueue(client, "phone", "watch", quietLogger())
	watch := NewQueue(client, "watch", "phone", quietLogger())
	require.NoError(t, phone.Enqueue(context.Background(), []byte("hi")))

	n, err := watch.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	pending, err := watch.Pending()
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestQueue_ReadOnlyRejectsEnqueue(t *testing.T) {
	store := newMemKV()
	store.readOnly = true
	q := NewQueue(NewClient(store), "phone", "watch", quietLogger())

	assert.ErrorIs(t, q.Enqueue(context.Background(), []byte("x")), ErrReadOnly)
}

func TestGateway_RoundTripPerDevice(t *testing.T) {
	client := NewClient(newMemKV())
	phone := NewGateway(client, "phone")
	watch := NewGateway(client, "watch")

	_, err := phone.Get(storage.KeyCurrentWorkout)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, phone.Set(storage.KeyCurrentWorkout, []byte(`{"name":"Push"}`)))
	got, err := phone.Get(storage.KeyCurrentWorkout)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"Push"}`, string(got))

	_, err = watch.Get(storage.KeyCurrentWorkout)
	assert.ErrorIs(t, err, storage.ErrNotFound, "device state is not shared")

	require.NoError(t, phone.Delete(storage.KeyCurrentWorkout))
	require.NoError(t, phone.Delete(storage.KeyCurrentWorkout))
	_, err = phone.Get(storage.KeyCurrentWorkout)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
