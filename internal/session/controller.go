// ABOUTME: SessionController owning the single live workout and its clock.
// ABOUTME: Drives Idle, PreSession, Active, Paused and Completed transitions.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitcore/internal/clock"
	"github.com/harperreed/fitcore/internal/events"
	"github.com/harperreed/fitcore/internal/health"
	"github.com/harperreed/fitcore/internal/history"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/owner"
	"github.com/harperreed/fitcore/internal/resttimer"
	"github.com/harperreed/fitcore/internal/storage"
)

// Limits on workout size. Adds beyond them are no-ops.
const (
	MaxSetsPerExercise     = 20
	MaxExercisesPerWorkout = 50
)

// Publisher receives outbound session changes for the paired device.
// Calls must not block.
type Publisher interface {
	SessionStarted(w models.Workout)
	SessionUpdated(w models.Workout)
	SetCompleted(w models.Workout, exerciseID, setID uuid.UUID)
	SessionCompleted(w models.Workout)
	MetricsCaptured(m models.MetricsSnapshot)
}

// RestTimer is the dependent rest countdown.
type RestTimer interface {
	Start(d time.Duration, o resttimer.Owner)
	Hold()
	Release()
	Cancel()
}

// Options configures a Controller. Store, Archive, Clock and Post are
// required; everything else has a working default.
type Options struct {
	Clock      clock.Clock
	Post       owner.Poster
	Store      storage.Gateway
	Archive    *history.Archive
	Provider   health.Provider
	Notifier   health.Notifier
	RestTimer  RestTimer
	Publisher  Publisher
	Logger     *slog.Logger
	RestTimers bool
	// Go runs slow collaborator calls off the owner loop.
	Go func(name string, fn func())
	// Context bounds provider calls.
	Context context.Context
}

// Controller owns the live session. All methods must be called from the
// owner context.
type Controller struct {
	clock      clock.Clock
	post       owner.Poster
	store      storage.Gateway
	archive    *history.Archive
	provider   health.Provider
	notifier   health.Notifier
	rest       RestTimer
	publisher  Publisher
	logger     *slog.Logger
	restTimers bool
	goFn       func(name string, fn func())
	ctx        context.Context

	feed *events.Feed[Event]

	state         State
	acct          Accounting
	workout       *models.Workout
	draft         []models.Exercise
	lastCompleted *models.Workout
	metrics       *models.MetricsSnapshot
	lastRemote    time.Time
}

// New creates an Idle controller. Call Restore to recover persisted state.
func New(opts Options) *Controller {
	c := &Controller{
		clock:      opts.Clock,
		post:       opts.Post,
		store:      opts.Store,
		archive:    opts.Archive,
		provider:   opts.Provider,
		notifier:   opts.Notifier,
		rest:       opts.RestTimer,
		publisher:  opts.Publisher,
		logger:     opts.Logger,
		restTimers: opts.RestTimers,
		goFn:       opts.Go,
		ctx:        opts.Context,
		feed:       events.NewFeed[Event](true),
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.provider == nil {
		c.provider = health.Unavailable{}
	}
	if c.publisher == nil {
		c.publisher = nopPublisher{}
	}
	if c.goFn == nil {
		logger := c.logger
		c.goFn = func(name string, fn func()) { owner.SafeGo(logger, name, fn) }
	}
	if c.ctx == nil {
		c.ctx = context.Background()
	}
	return c
}

// SetPublisher swaps the outbound publisher. The composition root uses it
// to break the construction cycle with the sync bridge.
func (c *Controller) SetPublisher(p Publisher) {
	if p == nil {
		p = nopPublisher{}
	}
	c.publisher = p
}

// Events publishes controller events. New subscribers receive the latest.
func (c *Controller) Events() *events.Feed[Event] {
	return c.feed
}

// State returns the lifecycle phase.
func (c *Controller) State() State {
	return c.state
}

// Elapsed returns active session time as of now.
func (c *Controller) Elapsed() time.Duration {
	if !c.state.Running() {
		return 0
	}
	return c.acct.Elapsed(c.clock.Now())
}

// Snapshot returns a copy of the controller's observable state.
func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		State:         c.state,
		Workout:       c.workout.Clone(),
		Draft:         models.CloneExercises(c.draft),
		Elapsed:       c.Elapsed(),
		LastCompleted: c.lastCompleted.Clone(),
	}
	if c.state.Running() {
		start := c.acct.Start
		s.StartedAt = &start
	}
	if c.metrics != nil {
		m := c.metrics.Clone()
		s.Metrics = &m
	}
	return s
}

// BeginSetup starts the session clock and enters PreSession. The start
// instant is persisted immediately so a relaunch can recover it.
func (c *Controller) BeginSetup() bool {
	if c.state != Idle && c.state != Completed {
		c.noop("begin setup")
		return false
	}
	now := c.clock.Now()
	if c.rest != nil {
		c.rest.Cancel()
	}
	c.acct.Begin(now)
	c.draft = nil
	c.workout = nil
	c.lastRemote = time.Time{}
	c.state = PreSession
	c.persistClock()
	c.deleteKey(storage.KeySessionDraft)
	c.emit(EventState)
	return true
}

// CommitWorkout turns the draft into the live Workout. The clock started by
// BeginSetup keeps running; elapsed time is not reset. A nil exercises list
// commits the draft assembled so far.
func (c *Controller) CommitWorkout(name string, exercises []models.Exercise) bool {
	if c.state != PreSession {
		c.noop("commit workout")
		return false
	}
	if exercises == nil {
		exercises = c.draft
	}
	exercises = models.CloneExercises(exercises)
	if len(exercises) > MaxExercisesPerWorkout {
		c.logger.Warn("truncating workout to exercise limit", "component", "session", "count", len(exercises))
		exercises = exercises[:MaxExercisesPerWorkout]
	}
	c.activate(models.NewWorkout(name, exercises, c.acct.Start))
	return true
}

// StartFromTemplate begins a session directly from a template. From
// PreSession the running clock is kept.
func (c *Controller) StartFromTemplate(t models.WorkoutTemplate) bool {
	switch c.state {
	case Idle, Completed:
		c.acct.Begin(c.clock.Now())
		c.lastRemote = time.Time{}
	case PreSession:
	default:
		c.noop("start from template")
		return false
	}
	w := models.NewWorkout(t.Name, models.FreshExercises(t.Exercises), c.acct.Start)
	if t.Description != nil {
		w.WithNotes(*t.Description)
	}
	c.activate(w)
	return true
}

func (c *Controller) activate(w *models.Workout) {
	c.workout = w
	c.draft = nil
	c.state = Active
	c.persistClock()
	c.persistWorkout()
	c.deleteKey(storage.KeySessionDraft)
	c.goFn("health-begin", func() {
		if err := c.provider.BeginSession(c.ctx); err != nil {
			c.logger.Warn("begin health session failed", "component", "session", "error", err)
		}
	})
	c.publisher.SessionStarted(*w.Clone())
	c.emit(EventState)
}

// Pause freezes the session clock and holds the rest countdown.
func (c *Controller) Pause() bool {
	if c.state != Active {
		c.noop("pause")
		return false
	}
	c.acct.Pause(c.clock.Now())
	c.state = Paused
	if c.rest != nil {
		c.rest.Hold()
	}
	c.persistClock()
	c.goFn("health-pause", func() {
		if err := c.provider.PauseSession(c.ctx); err != nil {
			c.logger.Warn("pause health session failed", "component", "session", "error", err)
		}
	})
	c.emit(EventState)
	return true
}

// Resume unfreezes the session clock and releases the rest countdown.
func (c *Controller) Resume() bool {
	if c.state != Paused {
		c.noop("resume")
		return false
	}
	c.acct.Resume(c.clock.Now())
	c.state = Active
	if c.rest != nil {
		c.rest.Release()
	}
	c.persistClock()
	c.goFn("health-resume", func() {
		if err := c.provider.ResumeSession(c.ctx); err != nil {
			c.logger.Warn("resume health session failed", "component", "session", "error", err)
		}
	})
	c.emit(EventState)
	return true
}

// Complete ends the session: it stamps the end instant, archives the
// Workout, clears the persisted clock and notifies the peer. Metrics are
// fetched in the background and attached when they arrive.
func (c *Controller) Complete() bool {
	if c.state != Active && c.state != Paused {
		c.noop("complete")
		return false
	}
	now := c.clock.Now()
	if c.state == Paused {
		c.acct.Resume(now)
		if c.rest != nil {
			c.rest.Release()
		}
	}
	active := c.acct.Elapsed(now)

	w := c.workout
	w.Finish(now)
	c.archive.Save(*w, now)
	c.finishLocal(w)

	c.publisher.SessionCompleted(*w.Clone())
	if c.notifier != nil {
		c.notifier.Notify(health.KindSessionComplete, "Workout Complete",
			w.Name+" finished in "+FormatElapsed(active))
		c.notifier.Haptic(health.HapticSuccess)
	}
	c.fetchMetrics(w.ID, active)
	c.emit(EventCompleted)
	return true
}

// Cancel discards a draft session without archiving anything. From
// Completed it dismisses the summary.
func (c *Controller) Cancel() bool {
	switch c.state {
	case Idle:
		c.noop("cancel")
		return false
	case PreSession, Completed:
	default:
		c.noop("cancel active session")
		return false
	}
	if c.rest != nil {
		c.rest.Cancel()
	}
	c.acct.Reset()
	c.draft = nil
	c.workout = nil
	c.lastCompleted = nil
	c.state = Idle
	c.clearPersisted()
	c.emit(EventState)
	return true
}

// Tick publishes the current elapsed time. Safe to call at any rate.
func (c *Controller) Tick(now time.Time) {
	if !c.state.Running() {
		return
	}
	c.feed.Publish(Event{Kind: EventTick, State: c.state, Elapsed: c.acct.Elapsed(now), At: now})
}

// LatestMetrics returns the last metrics snapshot received or captured.
func (c *Controller) LatestMetrics() (models.MetricsSnapshot, bool) {
	if c.metrics == nil {
		return models.MetricsSnapshot{}, false
	}
	return c.metrics.Clone(), true
}

func (c *Controller) finishLocal(w *models.Workout) {
	if c.rest != nil {
		c.rest.Cancel()
	}
	c.lastCompleted = w.Clone()
	c.workout = nil
	c.draft = nil
	c.acct.Reset()
	c.state = Completed
	c.clearPersisted()
	c.goFn("health-end", func() {
		if err := c.provider.EndSession(c.ctx); err != nil {
			c.logger.Warn("end health session failed", "component", "session", "error", err)
		}
	})
}

func (c *Controller) fetchMetrics(id uuid.UUID, active time.Duration) {
	c.goFn("health-snapshot", func() {
		snap, err := c.provider.Snapshot(c.ctx)
		if err != nil {
			c.logger.Info("session finished without metrics", "component", "session", "error", err)
			return
		}
		if err := c.post.Post(func() { c.attachMetrics(id, snap, active) }); err != nil {
			c.logger.Warn("metrics snapshot dropped", "component", "session", "error", err)
		}
	})
}

func (c *Controller) attachMetrics(id uuid.UUID, snap models.MetricsSnapshot, active time.Duration) {
	if snap.Duration == nil {
		snap.Duration = &active
	}
	c.storeMetrics(snap)
	if w, err := c.archive.Get(id.String()); err == nil {
		m := snap.Clone()
		w.Metrics = &m
		c.archive.Save(w, c.clock.Now())
		if c.lastCompleted != nil && c.lastCompleted.ID == id {
			c.lastCompleted = w.Clone()
		}
	}
	c.publisher.MetricsCaptured(snap.Clone())
	c.emit(EventMetrics)
}

func (c *Controller) storeMetrics(snap models.MetricsSnapshot) {
	m := snap.Clone()
	c.metrics = &m
	if err := storage.SaveJSON(c.store, storage.KeyHealthMetrics, m); err != nil {
		c.logger.Warn("persist metrics failed", "component", "session", "error", err)
	}
}

func (c *Controller) emit(kind EventKind) {
	now := c.clock.Now()
	ev := Event{Kind: kind, State: c.state, At: now}
	if c.workout != nil {
		ev.Workout = c.workout.Clone()
	} else if kind == EventCompleted || kind == EventMetrics {
		ev.Workout = c.lastCompleted.Clone()
	}
	if c.state.Running() {
		ev.Elapsed = c.acct.Elapsed(now)
	}
	c.feed.Publish(ev)
}

func (c *Controller) noop(op string) {
	c.logger.Debug("ignored session operation", "component", "session", "op", op, "state", c.state)
}

type nopPublisher struct{}

func (nopPublisher) SessionStarted(models.Workout) {}
func (nopPublisher) SessionUpdated(models.Workout) {}
func (nopPublisher) SetCompleted(models.Workout, uuid.UUID, uuid.UUID) {}
func (nopPublisher) SessionCompleted(models.Workout) {}
func (nopPublisher) MetricsCaptured(models.MetricsSnapshot) {}
