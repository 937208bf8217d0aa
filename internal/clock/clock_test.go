// ABOUTME: Tests for the fake clock and the periodic tick source.
// ABOUTME: Covers ordering, cancellation and stale-generation suppression.
package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFake_AdvanceFiresInOrder(t *testing.T) {
	f := NewFake(epoch)
	var order []string
	var firedAt []time.Time

	f.AfterFunc(2*time.Second, func() { order = append(order, "b"); firedAt = append(firedAt, f.Now()) })
	f.AfterFunc(time.Second, func() { order = append(order, "a"); firedAt = append(firedAt, f.Now()) })
	f.AfterFunc(5*time.Second, func() { order = append(order, "c") })

	f.Advance(3 * time.Second)

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, []time.Time{epoch.Add(time.Second), epoch.Add(2 * time.Second)}, firedAt)
	assert.Equal(t, epoch.Add(3*time.Second), f.Now())
	assert.Equal(t, 1, f.Pending())
}

func TestFake_Stop(t *testing.T) {
	f := NewFake(epoch)
	fired := false
	tm := f.AfterFunc(time.Second, func() { fired = true })

	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop())
	f.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFake_CallbackSchedulesCallback(t *testing.T) {
	f := NewFake(epoch)
	count := 0
	var again func()
	again = func() {
		count++
		f.AfterFunc(time.Second, again)
	}
	f.AfterFunc(time.Second, again)

	f.Advance(5 * time.Second)

	assert.Equal(t, 5, count)
}

func TestPeriodic_TicksUntilStopped(t *testing.T) {
	f := NewFake(epoch)
	var ticks []time.Time
	p := NewPeriodic(f, time.Second, func(now time.Time) { ticks = append(ticks, now) })

	p.Start()
	require.True(t, p.Running())
	f.Advance(3 * time.Second)
	p.Stop()
	f.Advance(3 * time.Second)

	require.Len(t, ticks, 3)
	assert.Equal(t, epoch.Add(3*time.Second), ticks[2])
	assert.False(t, p.Running())
	assert.Equal(t, 0, f.Pending())
}

func TestPeriodic_RestartDiscardsOldRun(t *testing.T) {
	f := NewFake(epoch)
	count := 0
	p := NewPeriodic(f, time.Second, func(time.Time) { count++ })

	p.Start()
	f.Advance(500 * time.Millisecond)
	p.Start()
	f.Advance(time.Second)

	assert.Equal(t, 1, count, "only the restarted run should tick")
	assert.Equal(t, 1, f.Pending())
}

// staleClock hands back timers whose Stop never succeeds, like a real timer
// that has already fired and is waiting on a lock.
type staleClock struct {
	*Fake
	fns []func()
}

func (s *staleClock) AfterFunc(d time.Duration, fn func()) Timer {
	s.fns = append(s.fns, fn)
	return s.Fake.AfterFunc(d, fn)
}

func TestPeriodic_StaleCallbackIgnored(t *testing.T) {
	c := &staleClock{Fake: NewFake(epoch)}
	count := 0
	p := NewPeriodic(c, time.Second, func(time.Time) { count++ })

	p.Start()
	p.Stop()
	c.fns[0]()

	assert.Equal(t, 0, count)
	assert.False(t, p.Running())
}
