// ABOUTME: Single-slot rest countdown tied to one (exercise, set) owner.
// ABOUTME: Expiry is recomputed from absolute instants and guarded by a generation.
package resttimer

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitcore/internal/clock"
	"github.com/harperreed/fitcore/internal/events"
	"github.com/harperreed/fitcore/internal/health"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/owner"
)

// Rest duration bounds.
const (
	MinRest = 30 * time.Second
	MaxRest = 10 * time.Minute
)

// State of the countdown.
type State int

const (
	Idle State = iota
	Running
	Paused
	Expired
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Paused:
		return "paused"
	case Expired:
		return "expired"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Owner identifies the set a countdown belongs to.
type Owner struct {
	ExerciseID uuid.UUID `json:"exercise_id"`
	SetIndex   int       `json:"set_index"`
}

// Outcome distinguishes natural expiry from a manual skip.
type Outcome string

const (
	OutcomeExpired Outcome = "expired"
	OutcomeSkipped Outcome = "skipped"
)

// Completion is published when a countdown ends by expiry or skip.
// A countdown replaced by a newer Start, or cancelled, publishes nothing.
type Completion struct {
	Owner   Owner
	Outcome Outcome
	Total   time.Duration
	At      time.Time
}

// Status is a point-in-time view of the countdown.
type Status struct {
	State     State         `json:"state"`
	Owner     *Owner        `json:"owner,omitempty"`
	Total     time.Duration `json:"total"`
	Remaining time.Duration `json:"remaining"`
	Held      bool          `json:"held"`
}

// Progress returns the elapsed fraction of the countdown in [0, 1].
func (s Status) Progress() float64 {
	if s.Total <= 0 {
		return 0
	}
	p := 1 - float64(s.Remaining)/float64(s.Total)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Engine runs at most one rest countdown. All methods must be called from
// the owner context; timer callbacks are posted back to it.
type Engine struct {
	clock    clock.Clock
	post     owner.Poster
	notifier health.Notifier
	logger   *slog.Logger

	completions *events.Feed[Completion]
	updates     *events.Feed[Status]

	state     State
	owner     Owner
	total     time.Duration
	deadline  time.Time
	remaining time.Duration
	held      bool

	// holdPaused marks a countdown that Hold (not the user) paused.
	holdPaused bool
	gen        uint64
	timer      clock.Timer
}

// New creates an idle engine.
func New(c clock.Clock, post owner.Poster, notifier health.Notifier, logger *slog.Logger) *Engine {
	return &Engine{
		clock:       c,
		post:        post,
		notifier:    notifier,
		logger:      logger,
		completions: events.NewFeed[Completion](false),
		updates:     events.NewFeed[Status](true),
	}
}

// Completions publishes expiry and skip events.
func (e *Engine) Completions() *events.Feed[Completion] {
	return e.completions
}

// Updates publishes the status after every change and tick.
func (e *Engine) Updates() *events.Feed[Status] {
	return e.updates
}

// ClampRest bounds d to [MinRest, MaxRest]; zero or negative means the
// default rest.
func ClampRest(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return models.DefaultRestTime
	case d < MinRest:
		return MinRest
	case d > MaxRest:
		return MaxRest
	default:
		return d
	}
}

// Start begins a countdown of d for o, silently replacing any countdown in
// progress. Bounds are applied by callers; only a non-positive d falls back
// to the default rest. If the engine is held by a paused session the new
// countdown starts paused and resumes on Release.
func (e *Engine) Start(d time.Duration, o Owner) {
	if d <= 0 {
		d = models.DefaultRestTime
	}
	if e.state == Running || e.state == Paused {
		e.logger.Debug("rest timer interrupted", "component", "resttimer",
			"exercise", e.owner.ExerciseID, "set", e.owner.SetIndex)
	}
	e.disarm()
	e.owner = o
	e.total = d
	e.holdPaused = e.held
	if e.held {
		e.state = Paused
		e.remaining = d
	} else {
		e.state = Running
		e.deadline = e.clock.Now().Add(d)
		e.arm(d)
	}
	e.publish()
}

// Pause freezes the countdown. It reports false unless running.
func (e *Engine) Pause() bool {
	if e.state != Running {
		return false
	}
	e.remaining = e.remainingAt(e.clock.Now())
	e.disarm()
	e.state = Paused
	e.publish()
	return true
}

// Resume continues a paused countdown. It reports false unless paused, or
// while a paused session holds the engine.
func (e *Engine) Resume() bool {
	if e.state != Paused || e.held {
		return false
	}
	e.state = Running
	e.deadline = e.clock.Now().Add(e.remaining)
	e.arm(e.remaining)
	e.publish()
	return true
}

// Hold pauses the countdown because the enclosing session paused.
func (e *Engine) Hold() {
	if e.held {
		return
	}
	e.held = true
	if e.state == Running {
		e.remaining = e.remainingAt(e.clock.Now())
		e.disarm()
		e.state = Paused
		e.holdPaused = true
	}
	e.publish()
}

// Release undoes Hold, resuming a countdown the hold paused. A countdown
// the user paused before the hold stays paused.
func (e *Engine) Release() {
	if !e.held {
		return
	}
	e.held = false
	if e.state == Paused && e.holdPaused {
		e.holdPaused = false
		e.Resume()
		return
	}
	e.holdPaused = false
	e.publish()
}

// Skip ends the countdown immediately with OutcomeSkipped.
func (e *Engine) Skip() bool {
	if e.state != Running && e.state != Paused {
		return false
	}
	e.finish(OutcomeSkipped, e.clock.Now())
	return true
}

// Cancel discards the countdown without publishing a completion.
func (e *Engine) Cancel() {
	if e.state == Idle {
		return
	}
	e.disarm()
	e.state = Idle
	e.holdPaused = false
	e.total = 0
	e.remaining = 0
	e.publish()
}

// Reset restarts the current owner's countdown at its full duration.
func (e *Engine) Reset() bool {
	if e.total == 0 {
		return false
	}
	e.Start(e.total, e.owner)
	return true
}

// Tick recomputes the countdown at now, expiring it if due. Ticks are
// idempotent and may be coalesced.
func (e *Engine) Tick(now time.Time) {
	if e.state != Running {
		return
	}
	if !now.Before(e.deadline) {
		e.finish(OutcomeExpired, now)
		return
	}
	e.publish()
}

// Status reports the countdown as of now.
func (e *Engine) Status() Status {
	return e.statusAt(e.clock.Now())
}

// Remaining returns the time left as of now.
func (e *Engine) Remaining() time.Duration {
	return e.statusAt(e.clock.Now()).Remaining
}

func (e *Engine) statusAt(now time.Time) Status {
	s := Status{State: e.state, Total: e.total, Held: e.held}
	if e.state == Running || e.state == Paused || e.state == Expired {
		o := e.owner
		s.Owner = &o
	}
	switch e.state {
	case Running:
		s.Remaining = e.remainingAt(now)
	case Paused:
		s.Remaining = e.remaining
	}
	return s
}

func (e *Engine) remainingAt(now time.Time) time.Duration {
	r := e.deadline.Sub(now)
	if r < 0 {
		return 0
	}
	return r
}

func (e *Engine) finish(outcome Outcome, now time.Time) {
	e.disarm()
	e.state = Expired
	e.holdPaused = false
	e.remaining = 0
	c := Completion{Owner: e.owner, Outcome: outcome, Total: e.total, At: now}
	e.logger.Debug("rest timer finished", "component", "resttimer", "outcome", outcome,
		"exercise", c.Owner.ExerciseID, "set", c.Owner.SetIndex)
	if outcome == OutcomeExpired && e.notifier != nil {
		e.notifier.Notify(health.KindRestComplete, "Timer Complete", "Your rest period is over. Ready for the next set?")
		e.notifier.Haptic(health.HapticHeavy)
	}
	e.completions.Publish(c)
	e.publish()
}

func (e *Engine) arm(d time.Duration) {
	gen := e.gen
	e.timer = e.clock.AfterFunc(d, func() {
		if err := e.post.Post(func() { e.fire(gen) }); err != nil {
			e.logger.Debug("rest timer expiry dropped", "component", "resttimer", "error", err)
		}
	})
}

func (e *Engine) disarm() {
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) fire(gen uint64) {
	if gen != e.gen || e.state != Running {
		return
	}
	now := e.clock.Now()
	if now.Before(e.deadline) {
		e.arm(e.deadline.Sub(now))
		return
	}
	e.finish(OutcomeExpired, now)
}

func (e *Engine) publish() {
	e.updates.Publish(e.Status())
}
