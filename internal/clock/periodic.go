// ABOUTME: Cancellable periodic tick source built on Clock.AfterFunc.
// ABOUTME: A generation counter keeps callbacks from a stopped run from ticking.
package clock

import (
	"sync"
	"time"
)

// Periodic calls a function every interval until stopped.
// Ticks that arrive after Stop, or from a run replaced by a later Start,
// are discarded.
type Periodic struct {
	clock    Clock
	interval time.Duration
	fn       func(time.Time)

	mu    sync.Mutex
	gen   uint64
	timer Timer
}

// NewPeriodic creates a stopped tick source.
func NewPeriodic(c Clock, interval time.Duration, fn func(time.Time)) *Periodic {
	if interval <= 0 {
		interval = time.Second
	}
	return &Periodic{clock: c, interval: interval, fn: fn}
}

// Start begins ticking, replacing any previous run.
func (p *Periodic) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.scheduleLocked(p.gen)
}

// Stop cancels ticking. It is safe to call when not running.
func (p *Periodic) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

// Running reports whether a run is scheduled.
func (p *Periodic) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timer != nil
}

func (p *Periodic) stopLocked() {
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

func (p *Periodic) scheduleLocked(gen uint64) {
	p.timer = p.clock.AfterFunc(p.interval, func() { p.tick(gen) })
}

func (p *Periodic) tick(gen uint64) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.scheduleLocked(gen)
	p.mu.Unlock()

	p.fn(p.clock.Now())
}
