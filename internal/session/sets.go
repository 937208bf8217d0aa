// ABOUTME: Exercise and set mutations on the live workout or the setup draft.
// ABOUTME: Each change persists best-effort and pushes the session to the peer.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/resttimer"
)

// SetUpdate carries the fields to change on a set. Nil fields are left alone.
type SetUpdate struct {
	Weight      *float64
	ClearWeight bool
	Reps        *int
	RestTime    *time.Duration
	Notes       *string
}

// CompleteSet marks a set completed. Completing it again keeps the flag and
// refreshes the completion instant. With rest timers enabled a rest
// countdown starts for the set.
func (c *Controller) CompleteSet(exerciseID, setID uuid.UUID) bool {
	ex, si := c.findSet(exerciseID, setID)
	if ex == nil {
		c.noop("complete set")
		return false
	}
	set := &ex.Sets[si]
	set.Complete(c.clock.Now())

	if c.restTimers && c.rest != nil {
		d := set.RestTime
		if d <= 0 {
			d = ex.RestTime
		}
		c.rest.Start(d, resttimer.Owner{ExerciseID: ex.ID, SetIndex: si})
	}
	c.changed()
	if c.workout != nil {
		c.publisher.SetCompleted(*c.workout.Clone(), exerciseID, setID)
	}
	return true
}

// AddSet appends a set to an exercise and returns its id.
func (c *Controller) AddSet(exerciseID uuid.UUID, weight *float64, reps int) (uuid.UUID, bool) {
	ex := c.findExercise(exerciseID)
	if ex == nil {
		c.noop("add set")
		return uuid.Nil, false
	}
	if len(ex.Sets) >= MaxSetsPerExercise {
		c.logger.Info("set limit reached", "component", "session", "exercise", ex.Name, "limit", MaxSetsPerExercise)
		return uuid.Nil, false
	}
	s := models.NewSet(weight, reps)
	if ex.RestTime > 0 {
		s.RestTime = ex.RestTime
	}
	ex.Sets = append(ex.Sets, s)
	c.changed()
	return s.ID, true
}

// RemoveSet deletes a set.
func (c *Controller) RemoveSet(exerciseID, setID uuid.UUID) bool {
	ex, si := c.findSet(exerciseID, setID)
	if ex == nil {
		c.noop("remove set")
		return false
	}
	ex.Sets = append(ex.Sets[:si], ex.Sets[si+1:]...)
	c.changed()
	return true
}

// UpdateSet edits a set in place. Completion state is not touched.
func (c *Controller) UpdateSet(exerciseID, setID uuid.UUID, u SetUpdate) bool {
	ex, si := c.findSet(exerciseID, setID)
	if ex == nil {
		c.noop("update set")
		return false
	}
	s := &ex.Sets[si]
	switch {
	case u.ClearWeight:
		s.Weight = nil
	case u.Weight != nil:
		w := *u.Weight
		s.Weight = &w
	}
	if u.Reps != nil && *u.Reps >= 0 {
		s.Reps = *u.Reps
	}
	if u.RestTime != nil {
		s.RestTime = resttimer.ClampRest(*u.RestTime)
	}
	if u.Notes != nil {
		n := *u.Notes
		s.Notes = &n
	}
	c.changed()
	return true
}

// AddExercise appends an exercise.
func (c *Controller) AddExercise(e models.Exercise) bool {
	list := c.exercises()
	if list == nil {
		c.noop("add exercise")
		return false
	}
	if len(*list) >= MaxExercisesPerWorkout {
		c.logger.Info("exercise limit reached", "component", "session", "limit", MaxExercisesPerWorkout)
		return false
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if models.IndexOfExercise(*list, e.ID) >= 0 {
		c.noop("add duplicate exercise")
		return false
	}
	if len(e.Sets) > MaxSetsPerExercise {
		e.Sets = e.Sets[:MaxSetsPerExercise]
	}
	*list = append(*list, models.CloneExercises([]models.Exercise{e})...)
	c.changed()
	return true
}

// RemoveExercise deletes an exercise and its sets.
func (c *Controller) RemoveExercise(exerciseID uuid.UUID) bool {
	list := c.exercises()
	if list == nil {
		c.noop("remove exercise")
		return false
	}
	i := models.IndexOfExercise(*list, exerciseID)
	if i < 0 {
		c.noop("remove unknown exercise")
		return false
	}
	*list = append((*list)[:i], (*list)[i+1:]...)
	c.changed()
	return true
}

// ErrNoWorkout is returned when a reference is resolved with nothing to edit.
var ErrNoWorkout = errors.New("no workout or draft to edit")

// ResolveExercise maps a 1-based position or ID prefix to an exercise ID
// in the live workout, or in the draft during setup.
func (c *Controller) ResolveExercise(ref string) (uuid.UUID, error) {
	list := c.exercises()
	if list == nil {
		return uuid.Nil, ErrNoWorkout
	}
	i, err := models.ResolveExercise(*list, ref)
	if err != nil {
		return uuid.Nil, err
	}
	return (*list)[i].ID, nil
}

// ResolveSet maps exercise and set references to their IDs.
func (c *Controller) ResolveSet(exerciseRef, setRef string) (uuid.UUID, uuid.UUID, error) {
	exID, err := c.ResolveExercise(exerciseRef)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	ex := c.findExercise(exID)
	i, err := models.ResolveSet(ex.Sets, setRef)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return exID, ex.Sets[i].ID, nil
}

// exercises returns the list set operations act on: the live workout's, or
// the draft's during setup.
func (c *Controller) exercises() *[]models.Exercise {
	if c.workout != nil {
		return &c.workout.Exercises
	}
	if c.state == PreSession {
		return &c.draft
	}
	return nil
}

func (c *Controller) findExercise(id uuid.UUID) *models.Exercise {
	list := c.exercises()
	if list == nil {
		return nil
	}
	i := models.IndexOfExercise(*list, id)
	if i < 0 {
		return nil
	}
	return &(*list)[i]
}

func (c *Controller) findSet(exerciseID, setID uuid.UUID) (*models.Exercise, int) {
	ex := c.findExercise(exerciseID)
	if ex == nil {
		return nil, -1
	}
	si := ex.SetIndex(setID)
	if si < 0 {
		return nil, -1
	}
	return ex, si
}

// changed persists the mutated workout or draft and pushes the session.
func (c *Controller) changed() {
	if c.workout != nil {
		c.persistWorkout()
		c.publisher.SessionUpdated(*c.workout.Clone())
	} else {
		c.persistDraft()
	}
	c.emit(EventUpdated)
}
