// ABOUTME: Application of session state received from the paired device.
// ABOUTME: Messages apply by send time; stale or already-archived ones are dropped.
package session

import (
	"time"

	"github.com/harperreed/fitcore/internal/models"
)

// ApplyRemoteSession overwrites local session state with the peer's copy.
// With final set (or when the peer's copy carries an end instant) the
// session is archived and the controller moves to Completed if it was
// tracking the same workout. Nothing is echoed back to the peer.
func (c *Controller) ApplyRemoteSession(w models.Workout, sentAt time.Time, final bool) bool {
	if c.archive.Contains(w.ID) {
		c.logger.Debug("ignoring session message for archived workout", "component", "session", "workout", w.ID)
		return false
	}
	if !c.lastRemote.IsZero() && sentAt.Before(c.lastRemote) {
		c.logger.Debug("dropping stale session message", "component", "session", "workout", w.ID,
			"sent", sentAt, "last", c.lastRemote)
		return false
	}
	c.lastRemote = sentAt

	if final || w.EndTime != nil {
		return c.applyRemoteCompletion(w)
	}

	incoming := w.Clone()
	incoming.IsActive = true
	switch {
	case c.workout != nil && c.workout.ID == incoming.ID:
	case c.state == Active || c.state == Paused:
		c.logger.Info("peer replaced the live workout", "component", "session",
			"local", c.workout.ID, "remote", incoming.ID)
		c.acct.Begin(incoming.StartTime)
		c.state = Active
		if c.rest != nil {
			c.rest.Cancel()
		}
	default:
		// Idle, PreSession or Completed: adopt the peer's clock.
		c.acct.Begin(incoming.StartTime)
		c.state = Active
	}
	c.workout = incoming
	c.draft = nil
	c.persistClock()
	c.persistWorkout()
	c.emit(EventRemote)
	return true
}

func (c *Controller) applyRemoteCompletion(w models.Workout) bool {
	now := c.clock.Now()
	done := w.Clone()
	if done.EndTime == nil {
		done.Finish(now)
	}
	done.IsActive = false
	c.archive.Save(*done, now)

	if c.workout != nil && c.workout.ID == done.ID {
		c.finishLocal(done)
		c.emit(EventCompleted)
		return true
	}
	c.emit(EventRemote)
	return true
}

// SessionSnapshot returns the live workout for answering a sync request.
func (c *Controller) SessionSnapshot() (models.Workout, bool) {
	if c.workout == nil {
		return models.Workout{}, false
	}
	return *c.workout.Clone(), true
}

// ApplyRemoteMetrics stores a metrics snapshot pushed by the peer.
func (c *Controller) ApplyRemoteMetrics(m models.MetricsSnapshot) {
	c.storeMetrics(m)
	c.emit(EventMetrics)
}
