// ABOUTME: Tests for the session controller lifecycle, set operations and recovery.
// ABOUTME: Uses a fake clock, in-memory store and a recording publisher.
package session

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitcore/internal/clock"
	"github.com/harperreed/fitcore/internal/health"
	"github.com/harperreed/fitcore/internal/history"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/owner"
	"github.com/harperreed/fitcore/internal/resttimer"
	"github.com/harperreed/fitcore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	started, updated, completed []models.Workout
	setsCompleted               []uuid.UUID
	metrics                     []models.MetricsSnapshot
}

func (p *recordingPublisher) SessionStarted(w models.Workout) { p.started = append(p.started, w) }
func (p *recordingPublisher) SessionUpdated(w models.Workout) { p.updated = append(p.updated, w) }
func (p *recordingPublisher) SetCompleted(w models.Workout, _, setID uuid.UUID) {
	p.setsCompleted = append(p.setsCompleted, setID)
}
func (p *recordingPublisher) SessionCompleted(w models.Workout) {
	p.completed = append(p.completed, w)
}
func (p *recordingPublisher) MetricsCaptured(m models.MetricsSnapshot) {
	p.metrics = append(p.metrics, m)
}

type harness struct {
	clock     *clock.Fake
	store     *storage.Memory
	archive   *history.Archive
	provider  *health.Static
	notifier  *health.Recorder
	rest      *resttimer.Engine
	publisher *recordingPublisher
	ctrl      *Controller
	events    []Event
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:     clock.NewFake(t0),
		store:     storage.NewMemory(),
		provider:  health.NewStatic(true),
		notifier:  &health.Recorder{},
		publisher: &recordingPublisher{},
	}
	h.archive = history.New(h.store, quietLogger(), 0)
	h.rest = resttimer.New(h.clock, owner.Inline{}, h.notifier, quietLogger())
	h.ctrl = h.build()
	return h
}

// build creates a controller over the harness's store, as a relaunch would.
func (h *harness) build() *Controller {
	c := New(Options{
		Clock:      h.clock,
		Post:       owner.Inline{},
		Store:      h.store,
		Archive:    h.archive,
		Provider:   h.provider,
		Notifier:   h.notifier,
		RestTimer:  h.rest,
		Publisher:  h.publisher,
		Logger:     quietLogger(),
		RestTimers: true,
		Go:         func(_ string, fn func()) { fn() },
	})
	c.Events().Subscribe(func(e Event) { h.events = append(h.events, e) })
	return c
}

func pushups() []models.Exercise {
	return []models.Exercise{
		models.NewExercise("Push-ups", "Chest", models.NewSet(nil, 15), models.NewSet(nil, 12)),
		models.NewExercise("Bench", "Chest", models.NewSet(models.Float(60), 8)),
	}
}

func TestController_CommitPreservesPreSessionElapsed(t *testing.T) {
	h := newHarness(t)

	require.True(t, h.ctrl.BeginSetup())
	assert.Equal(t, PreSession, h.ctrl.State())
	h.clock.Advance(90 * time.Second)

	require.True(t, h.ctrl.CommitWorkout("Push", pushups()))
	assert.Equal(t, Active, h.ctrl.State())
	h.clock.Advance(30 * time.Second)

	assert.Equal(t, 2*time.Minute, h.ctrl.Elapsed())
	snap := h.ctrl.Snapshot()
	require.NotNil(t, snap.Workout)
	assert.Equal(t, t0, snap.Workout.StartTime)
	require.Len(t, h.publisher.started, 1)
	began, _ := h.provider.Sessions()
	assert.Equal(t, 1, began)
}

func TestController_BeginSetupPersistsStartImmediately(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()

	var pc persistedClock
	found, err := storage.LoadJSON(h.store, storage.KeySessionStartDate, &pc)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, t0, pc.Start)
	assert.Equal(t, PreSession, pc.Phase)
}

func TestController_PauseResumeScenario(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())

	h.clock.Advance(30 * time.Second)
	require.True(t, h.ctrl.Pause())
	assert.False(t, h.ctrl.Pause(), "double pause is a no-op")
	h.clock.Advance(60 * time.Second)
	require.True(t, h.ctrl.Resume())
	assert.False(t, h.ctrl.Resume(), "double resume is a no-op")
	h.clock.Advance(30 * time.Second)

	assert.Equal(t, 60*time.Second, h.ctrl.Elapsed())
}

func TestController_CompleteWithoutSessionIsNoOp(t *testing.T) {
	h := newHarness(t)

	assert.False(t, h.ctrl.Complete())
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, 0, h.archive.Len())
	assert.Empty(t, h.publisher.completed)
}

func TestController_CompleteArchivesAndClears(t *testing.T) {
	h := newHarness(t)
	h.provider.Set(models.MetricsSnapshot{HeartRate: models.Float(128), CaloriesBurned: models.Float(250)})
	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())
	h.clock.Advance(10 * time.Minute)

	require.True(t, h.ctrl.Complete())

	assert.Equal(t, Completed, h.ctrl.State())
	require.Equal(t, 1, h.archive.Len())
	archived := h.archive.List(0)[0]
	require.NotNil(t, archived.EndTime)
	assert.Equal(t, t0.Add(10*time.Minute), *archived.EndTime)
	assert.False(t, archived.IsActive)
	require.NotNil(t, archived.Metrics, "metrics attach after the snapshot arrives")
	assert.Equal(t, 250.0, *archived.Metrics.CaloriesBurned)
	require.NotNil(t, archived.Metrics.Duration)
	assert.Equal(t, 10*time.Minute, *archived.Metrics.Duration)

	for _, key := range []string{storage.KeySessionStartDate, storage.KeyCurrentWorkout} {
		_, err := h.store.Get(key)
		assert.ErrorIs(t, err, storage.ErrNotFound, key)
	}
	require.Len(t, h.publisher.completed, 1)
	require.Len(t, h.publisher.metrics, 1)
	assert.Equal(t, 1, h.archive.Stats().TotalWorkouts)
	_, ended := h.provider.Sessions()
	assert.Equal(t, 1, ended)
	assert.Equal(t, time.Duration(0), h.ctrl.Elapsed())
}

func TestController_CompleteWithoutPermissionLeavesMetricsAbsent(t *testing.T) {
	h := newHarness(t)
	h.provider = health.NewStatic(false)
	h.ctrl = h.build()
	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())

	require.True(t, h.ctrl.Complete())

	archived := h.archive.List(0)[0]
	assert.Nil(t, archived.Metrics)
	assert.Empty(t, h.publisher.metrics)
	_, ok := h.ctrl.LatestMetrics()
	assert.False(t, ok)
}

func TestController_CompleteFromPausedExcludesPause(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())
	h.clock.Advance(5 * time.Minute)
	h.ctrl.Pause()
	h.clock.Advance(5 * time.Minute)

	require.True(t, h.ctrl.Complete())

	archived := h.archive.List(0)[0]
	require.NotNil(t, archived.Metrics)
	assert.Equal(t, 5*time.Minute, *archived.Metrics.Duration)
}

func TestController_CancelRules(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.ctrl.Cancel(), "nothing to cancel while idle")

	h.ctrl.BeginSetup()
	h.ctrl.AddExercise(models.NewExercise("Squat", "Legs"))
	require.True(t, h.ctrl.Cancel())
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, 0, h.archive.Len())
	_, err := h.store.Get(storage.KeySessionStartDate)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = h.store.Get(storage.KeySessionDraft)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())
	assert.False(t, h.ctrl.Cancel(), "an active session must be completed")
	assert.Equal(t, Active, h.ctrl.State())

	h.ctrl.Complete()
	require.True(t, h.ctrl.Cancel(), "dismisses the completed summary")
	assert.Equal(t, Idle, h.ctrl.State())
	assert.Equal(t, 1, h.archive.Len())
}

func TestController_CancelDiscardsRestCountdown(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	squat := models.NewExercise("Squat", "Legs", models.NewSet(models.Float(100), 5))
	require.True(t, h.ctrl.AddExercise(squat))
	require.True(t, h.ctrl.CompleteSet(squat.ID, squat.Sets[0].ID))
	require.Equal(t, resttimer.Running, h.rest.Status().State)

	require.True(t, h.ctrl.Cancel())
	h.clock.Advance(5 * time.Minute)

	assert.Equal(t, resttimer.Idle, h.rest.Status().State)
	assert.Empty(t, h.notifier.Notifications, "no rest_complete after cancel")
	assert.Equal(t, 0, h.clock.Pending())
}

func TestController_BeginSetupDiscardsRestCountdown(t *testing.T) {
	h := newHarness(t)
	h.rest.Start(time.Minute, resttimer.Owner{ExerciseID: uuid.New()})

	require.True(t, h.ctrl.BeginSetup())
	h.clock.Advance(5 * time.Minute)

	assert.Equal(t, resttimer.Idle, h.rest.Status().State)
	assert.Empty(t, h.notifier.Notifications)
}

func TestController_PauseResumeReachProvider(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())

	h.ctrl.Pause()
	h.ctrl.Pause()
	paused, resumed := h.provider.Pauses()
	assert.Equal(t, 1, paused)
	assert.Equal(t, 0, resumed)

	h.ctrl.Resume()
	paused, resumed = h.provider.Pauses()
	assert.Equal(t, 1, paused)
	assert.Equal(t, 1, resumed)
}

func TestController_PauseOnlyWhenActive(t *testing.T) {
	h := newHarness(t)
	assert.False(t, h.ctrl.Pause())
	h.ctrl.BeginSetup()
	assert.False(t, h.ctrl.Pause(), "setup cannot be paused")
	assert.False(t, h.ctrl.Resume())
	assert.False(t, h.ctrl.BeginSetup(), "already in setup")
	assert.False(t, h.ctrl.Complete(), "nothing committed yet")
}

func TestController_StartFromTemplate(t *testing.T) {
	h := newHarness(t)
	desc := "upper body"
	tpl := models.NewWorkoutTemplate("Upper", "strength", models.DifficultyBeginner, 30*time.Minute, pushups())
	tpl.Description = &desc

	require.True(t, h.ctrl.StartFromTemplate(tpl))

	snap := h.ctrl.Snapshot()
	require.NotNil(t, snap.Workout)
	assert.Equal(t, "Upper", snap.Workout.Name)
	require.NotNil(t, snap.Workout.Notes)
	assert.Equal(t, "upper body", *snap.Workout.Notes)
	assert.NotEqual(t, tpl.Exercises[0].ID, snap.Workout.Exercises[0].ID, "exercises get fresh ids")
	assert.False(t, h.ctrl.StartFromTemplate(tpl), "a session is already running")
}

func TestController_StartFromTemplateKeepsSetupClock(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	h.clock.Advance(45 * time.Second)

	tpl := models.NewWorkoutTemplate("Upper", "strength", models.DifficultyBeginner, 0, pushups())
	require.True(t, h.ctrl.StartFromTemplate(tpl))

	assert.Equal(t, 45*time.Second, h.ctrl.Elapsed())
}

func TestController_CompleteSetTwiceKeepsFlagAndRestamps(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())
	w := h.ctrl.Snapshot().Workout
	exID, setID := w.Exercises[0].ID, w.Exercises[0].Sets[0].ID

	require.True(t, h.ctrl.CompleteSet(exID, setID))
	h.clock.Advance(5 * time.Second)
	require.True(t, h.ctrl.CompleteSet(exID, setID))

	set := h.ctrl.Snapshot().Workout.Exercises[0].Sets[0]
	assert.True(t, set.IsCompleted)
	require.NotNil(t, set.CompletedAt)
	assert.Equal(t, t0.Add(5*time.Second), *set.CompletedAt)
	assert.Len(t, h.publisher.setsCompleted, 2)
	assert.Len(t, h.publisher.updated, 2)

	var persisted models.Workout
	found, err := storage.LoadJSON(h.store, storage.KeyCurrentWorkout, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, persisted.Exercises[0].Sets[0].IsCompleted)
}

func TestController_CompleteSetStartsRestTimer(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())
	w := h.ctrl.Snapshot().Workout

	h.ctrl.CompleteSet(w.Exercises[0].ID, w.Exercises[0].Sets[1].ID)

	st := h.rest.Status()
	assert.Equal(t, resttimer.Running, st.State)
	require.NotNil(t, st.Owner)
	assert.Equal(t, resttimer.Owner{ExerciseID: w.Exercises[0].ID, SetIndex: 1}, *st.Owner)
	assert.Equal(t, models.DefaultRestTime, st.Remaining)

	h.ctrl.Pause()
	assert.Equal(t, resttimer.Paused, h.rest.Status().State, "rest pauses with the session")
	h.ctrl.Resume()
	assert.Equal(t, resttimer.Running, h.rest.Status().State)
}

func TestController_SetOpsOnDraft(t *testing.T) {
	h := newHarness(t)
	squat := models.NewExercise("Squat", "Legs")

	assert.False(t, h.ctrl.AddExercise(squat), "no session yet")

	h.ctrl.BeginSetup()
	require.True(t, h.ctrl.AddExercise(squat))
	setID, ok := h.ctrl.AddSet(squat.ID, models.Float(100), 5)
	require.True(t, ok)
	reps := 3
	require.True(t, h.ctrl.UpdateSet(squat.ID, setID, SetUpdate{Reps: &reps, ClearWeight: true}))

	draft := h.ctrl.Snapshot().Draft
	require.Len(t, draft, 1)
	require.Len(t, draft[0].Sets, 1)
	assert.Equal(t, 3, draft[0].Sets[0].Reps)
	assert.Nil(t, draft[0].Sets[0].Weight)
	assert.Empty(t, h.publisher.updated, "drafts are not synced")

	var d persistedDraft
	found, err := storage.LoadJSON(h.store, storage.KeySessionDraft, &d)
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, d.Exercises, 1)

	require.True(t, h.ctrl.CommitWorkout("Legs", nil))
	w := h.ctrl.Snapshot().Workout
	require.Len(t, w.Exercises, 1)
	assert.Equal(t, "Squat", w.Exercises[0].Name)
}

func TestController_RemoveOps(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())
	w := h.ctrl.Snapshot().Workout

	assert.False(t, h.ctrl.RemoveSet(w.Exercises[0].ID, uuid.New()))
	require.True(t, h.ctrl.RemoveSet(w.Exercises[0].ID, w.Exercises[0].Sets[0].ID))
	require.True(t, h.ctrl.RemoveExercise(w.Exercises[1].ID))
	assert.False(t, h.ctrl.RemoveExercise(w.Exercises[1].ID))

	got := h.ctrl.Snapshot().Workout
	require.Len(t, got.Exercises, 1)
	require.Len(t, got.Exercises[0].Sets, 1)
	assert.Equal(t, 12, got.Exercises[0].Sets[0].Reps)
}

func TestController_Limits(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	ex := models.NewExercise("Curl", "Arms")
	h.ctrl.AddExercise(ex)

	for i := 0; i < MaxSetsPerExercise; i++ {
		_, ok := h.ctrl.AddSet(ex.ID, nil, 10)
		require.True(t, ok)
	}
	_, ok := h.ctrl.AddSet(ex.ID, nil, 10)
	assert.False(t, ok)

	for i := 1; i < MaxExercisesPerWorkout; i++ {
		require.True(t, h.ctrl.AddExercise(models.NewExercise("x", "y")))
	}
	assert.False(t, h.ctrl.AddExercise(models.NewExercise("one too many", "y")))
}

func TestController_PersistFailureKeepsMemory(t *testing.T) {
	h := newHarness(t)
	h.store.FailWrites(true)

	require.True(t, h.ctrl.BeginSetup())
	require.True(t, h.ctrl.CommitWorkout("Push", pushups()))

	assert.Equal(t, Active, h.ctrl.State())
	assert.NotNil(t, h.ctrl.Snapshot().Workout)
}

func TestController_RestoreActiveAfterRelaunch(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	h.clock.Advance(time.Minute)
	h.ctrl.CommitWorkout("Push", pushups())
	h.clock.Advance(time.Minute)
	h.ctrl.Pause()
	h.clock.Advance(time.Minute)

	relaunched := h.build()
	state := relaunched.Restore()

	assert.Equal(t, Paused, state)
	assert.Equal(t, 2*time.Minute, relaunched.Elapsed())
	require.True(t, relaunched.Resume())
	h.clock.Advance(time.Minute)
	assert.Equal(t, 3*time.Minute, relaunched.Elapsed())
	assert.Equal(t, "Push", relaunched.Snapshot().Workout.Name)
}

func TestController_RestorePreSession(t *testing.T) {
	h := newHarness(t)
	h.ctrl.BeginSetup()
	h.ctrl.AddExercise(models.NewExercise("Row", "Back"))
	h.clock.Advance(2 * time.Minute)

	relaunched := h.build()
	assert.Equal(t, PreSession, relaunched.Restore())
	assert.Equal(t, 2*time.Minute, relaunched.Elapsed())
	assert.Len(t, relaunched.Snapshot().Draft, 1)
}

func TestController_RestoreWithoutStartIsIdle(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Idle, h.ctrl.Restore())

	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())
	h.ctrl.Complete()

	relaunched := h.build()
	assert.Equal(t, Idle, relaunched.Restore(), "completed sessions come back idle")
}

func TestController_RestoreCorruptIsIdle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Set(storage.KeySessionStartDate, []byte("garbage")))

	assert.Equal(t, Idle, h.ctrl.Restore())
	_, err := h.store.Get(storage.KeySessionStartDate)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestController_TickPublishesElapsed(t *testing.T) {
	h := newHarness(t)
	h.ctrl.Tick(t0)
	h.ctrl.BeginSetup()
	h.events = nil

	h.ctrl.Tick(t0.Add(3 * time.Second))

	require.Len(t, h.events, 1)
	assert.Equal(t, EventTick, h.events[0].Kind)
	assert.Equal(t, 3*time.Second, h.events[0].Elapsed)
}

func TestStateText(t *testing.T) {
	for st := Idle; st <= Completed; st++ {
		b, err := st.MarshalText()
		require.NoError(t, err)
		var back State
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, st, back)
	}
	var s State
	assert.Error(t, s.UnmarshalText([]byte("sprinting")))
}

func TestController_ResolveSetByPosition(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.ctrl.ResolveSet("1", "1")
	require.ErrorIs(t, err, ErrNoWorkout)

	h.ctrl.BeginSetup()
	h.ctrl.CommitWorkout("Push", pushups())
	w, _ := h.ctrl.SessionSnapshot()

	exID, setID, err := h.ctrl.ResolveSet("1", "2")
	require.NoError(t, err)
	assert.Equal(t, w.Exercises[0].ID, exID)
	assert.Equal(t, w.Exercises[0].Sets[1].ID, setID)

	exID, err = h.ctrl.ResolveExercise(w.Exercises[1].ID.String()[:8])
	require.NoError(t, err)
	assert.Equal(t, w.Exercises[1].ID, exID)

	_, _, err = h.ctrl.ResolveSet("2", "5")
	assert.ErrorIs(t, err, models.ErrNoMatch)
}
