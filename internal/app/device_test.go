// ABOUTME: End-to-end tests for two paired devices over an in-process transport.
// ABOUTME: Each device runs its own owner loop against its own memory store.
package app

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/harperreed/fitcore/internal/clock"
	"github.com/harperreed/fitcore/internal/health"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/session"
	"github.com/harperreed/fitcore/internal/storage"
	fitsync "github.com/harperreed/fitcore/internal/sync"
	"github.com/harperreed/fitcore/internal/sync/loopback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

const wait, poll = 2 * time.Second, 10 * time.Millisecond

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type pair struct {
	clock        *clock.Fake
	phone, watch *Device
	phoneEnd     *loopback.End
	watchEnd     *loopback.End
	phoneStore   *storage.Memory
}

func newDevice(t *testing.T, id string, clk *clock.Fake, store storage.Gateway, end *loopback.End) *Device {
	t.Helper()
	d := New(Options{
		DeviceID:   id,
		Clock:      clk,
		Store:      store,
		Provider:   health.NewStatic(true),
		Notifier:   &health.Recorder{},
		Direct:     end,
		Queued:     end,
		Logger:     quietLogger(),
		RestTimers: true,
	})
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func newPair(t *testing.T) *pair {
	t.Helper()
	clk := clock.NewFake(start)
	phoneEnd, watchEnd := loopback.NewPair()
	phoneStore := storage.NewMemory()
	return &pair{
		clock:      clk,
		phone:      newDevice(t, "phone", clk, phoneStore, phoneEnd),
		watch:      newDevice(t, "watch", clk, storage.NewMemory(), watchEnd),
		phoneEnd:   phoneEnd,
		watchEnd:   watchEnd,
		phoneStore: phoneStore,
	}
}

func do(t *testing.T, d *Device, fn func()) {
	t.Helper()
	require.NoError(t, d.Do(context.Background(), fn))
}

func stateOf(t *testing.T, d *Device) session.State {
	t.Helper()
	var s session.State
	do(t, d, func() { s = d.Session.State() })
	return s
}

func archived(t *testing.T, d *Device, w models.Workout) bool {
	t.Helper()
	var ok bool
	do(t, d, func() { ok = d.Archive.Contains(w.ID) })
	return ok
}

func startWorkout(t *testing.T, d *Device) models.Workout {
	t.Helper()
	var w models.Workout
	do(t, d, func() {
		d.Session.BeginSetup()
		ex := models.NewExercise("Push-ups", "strength", models.NewSet(nil, 10), models.NewSet(nil, 10))
		require.True(t, d.Session.CommitWorkout("Morning", []models.Exercise{ex}))
		w, _ = d.Session.SessionSnapshot()
	})
	return w
}

func TestDevice_SessionMirrorsToPeer(t *testing.T) {
	p := newPair(t)
	w := startWorkout(t, p.phone)

	require.Eventually(t, func() bool { return stateOf(t, p.watch) == session.Active }, wait, poll)
	var mirrored models.Workout
	do(t, p.watch, func() { mirrored, _ = p.watch.Session.SessionSnapshot() })
	assert.Equal(t, w.ID, mirrored.ID)
	assert.Equal(t, "Morning", mirrored.Name)

	at, ok := p.watch.LastSync()
	require.True(t, ok)
	assert.True(t, at.Equal(start))
	_, ok = p.phone.LastSync()
	assert.False(t, ok, "nothing received on the sending side")
}

func TestDevice_CompletionArchivesOnBothDevices(t *testing.T) {
	p := newPair(t)
	w := startWorkout(t, p.phone)
	require.Eventually(t, func() bool { return stateOf(t, p.watch) == session.Active }, wait, poll)

	p.clock.Advance(20 * time.Minute)
	do(t, p.phone, func() { require.True(t, p.phone.Session.Complete()) })

	assert.True(t, archived(t, p.phone, w))
	require.Eventually(t, func() bool { return archived(t, p.watch, w) }, wait, poll)
	assert.Equal(t, session.Completed, stateOf(t, p.watch))
}

func TestDevice_QueuedCompletionReachesOfflinePeer(t *testing.T) {
	p := newPair(t)
	p.watchEnd.SetOnline(false)

	w := startWorkout(t, p.phone)
	do(t, p.phone, func() { require.True(t, p.phone.Session.Complete()) })

	require.Eventually(t, func() bool { return p.watchEnd.Pending() == 1 }, wait, poll)
	assert.Equal(t, session.Idle, stateOf(t, p.watch), "direct-only start never arrived")

	n, err := p.watch.DrainQueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Eventually(t, func() bool { return archived(t, p.watch, w) }, wait, poll)
}

func TestDevice_TemplatesConvergeWithoutEcho(t *testing.T) {
	p := newPair(t)
	tpl := models.NewWorkoutTemplate("Legs", "strength", models.DifficultyIntermediate, 45*time.Minute,
		[]models.Exercise{models.NewExercise("Squat", "strength", models.NewSet(nil, 5))})

	do(t, p.phone, func() { require.NoError(t, p.phone.Templates.Add(tpl)) })

	require.Eventually(t, func() bool {
		var n int
		do(t, p.watch, func() { n = p.watch.Templates.Len() })
		return n == 1
	}, wait, poll)
	do(t, p.watch, func() {
		got := p.watch.Templates.List()[0]
		assert.Equal(t, tpl.ID, got.ID)
		assert.Equal(t, models.OriginPeer, got.Origin)
	})
	assert.Zero(t, p.watch.Bridge.Stats().Sent, "peer replace is not pushed back")
}

func TestDevice_RestartRestoresLiveSession(t *testing.T) {
	p := newPair(t)
	w := startWorkout(t, p.phone)
	p.clock.Advance(90 * time.Second)
	require.NoError(t, p.phone.Close())

	_, spare := loopback.NewPair()
	again := newDevice(t, "phone", p.clock, p.phoneStore, spare)

	assert.Equal(t, session.Active, stateOf(t, again))
	do(t, again, func() {
		got, ok := again.Session.SessionSnapshot()
		require.True(t, ok)
		assert.Equal(t, w.ID, got.ID)
		assert.Equal(t, 90*time.Second, again.Session.Elapsed())
	})
}

func TestDevice_RunServesUntilCancelled(t *testing.T) {
	clk := clock.NewFake(start)
	phoneEnd, watchEnd := loopback.NewPair()
	watch := newDevice(t, "watch", clk, storage.NewMemory(), watchEnd)
	d := New(Options{
		DeviceID:     "phone",
		Clock:        clk,
		Store:        storage.NewMemory(),
		Direct:       phoneEnd,
		Queued:       phoneEnd,
		Logger:       quietLogger(),
		TickInterval: time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()

	require.Eventually(t, func() bool { return watch.Bridge.Stats().Received > 0 }, wait, poll,
		"run opens with a sync request")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("Run did not return after cancel")
	}
	require.NoError(t, d.Close())
}

func TestDevice_TickerRunsOnlyWhileSessionLive(t *testing.T) {
	clk := clock.NewFake(start)
	d := New(Options{
		DeviceID:     "watch",
		Clock:        clk,
		Store:        storage.NewMemory(),
		Logger:       quietLogger(),
		RestTimers:   true,
		TickInterval: time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- d.Run(ctx) }()
	<-d.Ready()

	var running bool
	require.Eventually(t, func() bool {
		return d.Do(ctx, func() { running = d.ticker.Running() }) == nil && !running
	}, wait, poll, "idle device does not tick")

	startWorkout(t, d)
	do(t, d, func() { running = d.ticker.Running() })
	assert.True(t, running, "ticks while active")

	var completed bool
	do(t, d, func() {
		completed = d.Session.Complete()
		running = d.ticker.Running()
	})
	require.True(t, completed)
	assert.False(t, running, "stops once the session completes")

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(wait):
		t.Fatal("Run did not return after cancel")
	}
	require.NoError(t, d.Close())
}

type confirmingInbox struct {
	deliver func(ctx context.Context, raw []byte) error
}

func (c *confirmingInbox) Enqueue(context.Context, []byte) error { return nil }

func (c *confirmingInbox) Deliver(fn func(ctx context.Context, raw []byte) error) {
	c.deliver = fn
}

func TestDevice_QueuedDeliveryConfirmsAfterApply(t *testing.T) {
	inbox := &confirmingInbox{}
	d := New(Options{
		DeviceID: "watch",
		Clock:    clock.NewFake(start),
		Store:    storage.NewMemory(),
		Queued:   inbox,
		Logger:   quietLogger(),
	})
	require.NoError(t, d.Start(context.Background()))
	require.NotNil(t, inbox.deliver)

	w := models.NewWorkout("Leg day", []models.Exercise{models.NewExercise("Squat", "Legs", models.NewSet(nil, 5))}, start)
	m, err := fitsync.NewMessage(fitsync.TypeUpdateSession, "phone", start,
		fitsync.SessionBody{Version: fitsync.BodyVersion, Workout: *w})
	require.NoError(t, err)
	raw, err := fitsync.Encode(m)
	require.NoError(t, err)

	require.NoError(t, inbox.deliver(context.Background(), raw))
	assert.Equal(t, uint64(1), d.Bridge.Stats().Received, "applied before delivery returns")

	require.NoError(t, d.Close())
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.Error(t, inbox.deliver(ctx, raw), "a stopped device cannot confirm")
}

func TestDevice_DrainQueueWithoutQueuedChannel(t *testing.T) {
	d := New(Options{DeviceID: "solo", Clock: clock.NewFake(start), Store: storage.NewMemory(), Logger: quietLogger()})
	n, err := d.DrainQueue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	direct, queued := d.Channels()
	assert.False(t, direct)
	assert.False(t, queued)
}
