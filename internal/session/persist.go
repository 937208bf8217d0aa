// ABOUTME: Best-effort persistence of the live session and relaunch recovery.
// ABOUTME: Write failures are logged; in-memory state stays authoritative.
package session

import (
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/storage"
)

type persistedClock struct {
	Accounting
	Phase State `json:"phase"`
}

type persistedDraft struct {
	Exercises []models.Exercise `json:"exercises"`
}

// Restore recovers a session persisted before a relaunch. Without a
// persisted start instant the controller stays Idle. Unreadable state is
// logged and discarded.
func (c *Controller) Restore() State {
	var pc persistedClock
	found, err := storage.LoadJSON(c.store, storage.KeySessionStartDate, &pc)
	if err != nil {
		c.logger.Warn("discarding unreadable session clock", "component", "session", "error", err)
		c.clearPersisted()
		c.resetIdle()
		return c.state
	}
	if !found || !pc.Started() {
		c.resetIdle()
		c.restoreMetrics()
		return c.state
	}

	var w models.Workout
	hasWorkout, err := storage.LoadJSON(c.store, storage.KeyCurrentWorkout, &w)
	if err != nil {
		c.logger.Warn("discarding unreadable current workout", "component", "session", "error", err)
		hasWorkout = false
	}

	c.acct = pc.Accounting
	switch {
	case hasWorkout && c.archive.Contains(w.ID):
		c.logger.Info("persisted session already archived", "component", "session", "workout", w.ID)
		c.clearPersisted()
		c.resetIdle()
	case hasWorkout:
		c.workout = &w
		c.state = Active
		if c.acct.Paused() {
			c.state = Paused
			if c.rest != nil {
				c.rest.Hold()
			}
		}
	default:
		var d persistedDraft
		if _, err := storage.LoadJSON(c.store, storage.KeySessionDraft, &d); err != nil {
			c.logger.Warn("discarding unreadable draft", "component", "session", "error", err)
		}
		c.acct.PauseStart = nil
		c.draft = d.Exercises
		c.state = PreSession
	}
	c.restoreMetrics()
	c.logger.Info("session restored", "component", "session", "state", c.state)
	c.emit(EventState)
	return c.state
}

func (c *Controller) restoreMetrics() {
	var m models.MetricsSnapshot
	found, err := storage.LoadJSON(c.store, storage.KeyHealthMetrics, &m)
	if err != nil {
		c.logger.Warn("discarding unreadable metrics", "component", "session", "error", err)
		return
	}
	if found {
		c.metrics = &m
	}
}

func (c *Controller) resetIdle() {
	c.acct.Reset()
	c.workout = nil
	c.draft = nil
	c.state = Idle
}

func (c *Controller) persistClock() {
	pc := persistedClock{Accounting: c.acct, Phase: c.state}
	if err := storage.SaveJSON(c.store, storage.KeySessionStartDate, pc); err != nil {
		c.logger.Warn("persist session clock failed", "component", "session", "error", err)
	}
}

func (c *Controller) persistWorkout() {
	if err := storage.SaveJSON(c.store, storage.KeyCurrentWorkout, c.workout); err != nil {
		c.logger.Warn("persist current workout failed", "component", "session", "error", err)
	}
}

func (c *Controller) persistDraft() {
	if err := storage.SaveJSON(c.store, storage.KeySessionDraft, persistedDraft{Exercises: c.draft}); err != nil {
		c.logger.Warn("persist draft failed", "component", "session", "error", err)
	}
}

func (c *Controller) clearPersisted() {
	for _, key := range []string{storage.KeySessionStartDate, storage.KeyCurrentWorkout, storage.KeySessionDraft} {
		c.deleteKey(key)
	}
}

func (c *Controller) deleteKey(key string) {
	if err := c.store.Delete(key); err != nil {
		c.logger.Warn("delete persisted key failed", "component", "session", "key", key, "error", err)
	}
}
