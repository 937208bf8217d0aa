// ABOUTME: Workout, Exercise and Set models for a live exercise session.
// ABOUTME: A Workout owns its Exercises, which own their Sets.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultRestTime is the rest duration used when none is given.
const DefaultRestTime = 120 * time.Second

// Workout represents one exercise session, live or archived.
type Workout struct {
	ID        uuid.UUID        `json:"id" yaml:"id"`
	Name      string           `json:"name" yaml:"name"`
	Exercises []Exercise       `json:"exercises" yaml:"exercises"`
	StartTime time.Time        `json:"start_time" yaml:"start_time"`
	EndTime   *time.Time       `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	IsActive  bool             `json:"is_active" yaml:"is_active"`
	Notes     *string          `json:"notes,omitempty" yaml:"notes,omitempty"`
	Metrics   *MetricsSnapshot `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// NewWorkout creates an active Workout with a generated UUID.
func NewWorkout(name string, exercises []Exercise, start time.Time) *Workout {
	return &Workout{
		ID:        uuid.New(),
		Name:      name,
		Exercises: exercises,
		StartTime: start,
		IsActive:  true,
	}
}

// WithNotes sets notes on the workout.
func (w *Workout) WithNotes(notes string) *Workout {
	w.Notes = &notes
	return w
}

// Finish stamps the end instant and deactivates the workout.
// It is a no-op when the workout already has an end instant. An end before
// the start is clamped to the start.
func (w *Workout) Finish(end time.Time) bool {
	if w.EndTime != nil {
		return false
	}
	if end.Before(w.StartTime) {
		end = w.StartTime
	}
	w.EndTime = &end
	w.IsActive = false
	return true
}

// Duration returns end minus start, or zero while the workout is open.
func (w *Workout) Duration() time.Duration {
	if w.EndTime == nil {
		return 0
	}
	return w.EndTime.Sub(w.StartTime)
}

// TotalSets counts every set across all exercises.
func (w *Workout) TotalSets() int {
	n := 0
	for _, e := range w.Exercises {
		n += len(e.Sets)
	}
	return n
}

// CompletedSets counts completed sets across all exercises.
func (w *Workout) CompletedSets() int {
	n := 0
	for _, e := range w.Exercises {
		n += e.CompletedSets()
	}
	return n
}

// Progress returns the fraction of completed sets in [0, 1].
func (w *Workout) Progress() float64 {
	total := w.TotalSets()
	if total == 0 {
		return 0
	}
	return float64(w.CompletedSets()) / float64(total)
}

// ExerciseIndex returns the position of the exercise with the given ID, or -1.
func (w *Workout) ExerciseIndex(id uuid.UUID) int {
	return IndexOfExercise(w.Exercises, id)
}

// Clone returns a deep copy of the workout.
func (w *Workout) Clone() *Workout {
	if w == nil {
		return nil
	}
	c := *w
	c.Exercises = CloneExercises(w.Exercises)
	if w.EndTime != nil {
		end := *w.EndTime
		c.EndTime = &end
	}
	if w.Notes != nil {
		notes := *w.Notes
		c.Notes = &notes
	}
	if w.Metrics != nil {
		m := w.Metrics.Clone()
		c.Metrics = &m
	}
	return &c
}

// Exercise is one movement within a workout, with its ordered sets.
type Exercise struct {
	ID           uuid.UUID     `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	Category     string        `json:"category" yaml:"category"`
	Sets         []Set         `json:"sets" yaml:"sets"`
	Notes        *string       `json:"notes,omitempty" yaml:"notes,omitempty"`
	RestTime     time.Duration `json:"rest_time" yaml:"rest_time"`
	TargetReps   *int          `json:"target_reps,omitempty" yaml:"target_reps,omitempty"`
	TargetWeight *float64      `json:"target_weight,omitempty" yaml:"target_weight,omitempty"`
}

// NewExercise creates an Exercise with the default rest duration.
func NewExercise(name, category string, sets ...Set) Exercise {
	return Exercise{
		ID:       uuid.New(),
		Name:     name,
		Category: category,
		Sets:     sets,
		RestTime: DefaultRestTime,
	}
}

// IsCompleted reports whether every set is completed.
func (e *Exercise) IsCompleted() bool {
	for _, s := range e.Sets {
		if !s.IsCompleted {
			return false
		}
	}
	return true
}

// CompletedSets counts completed sets.
func (e *Exercise) CompletedSets() int {
	n := 0
	for _, s := range e.Sets {
		if s.IsCompleted {
			n++
		}
	}
	return n
}

// SetIndex returns the position of the set with the given ID, or -1.
func (e *Exercise) SetIndex(id uuid.UUID) int {
	for i := range e.Sets {
		if e.Sets[i].ID == id {
			return i
		}
	}
	return -1
}

// Set is a single block of reps.
type Set struct {
	ID          uuid.UUID     `json:"id" yaml:"id"`
	Weight      *float64      `json:"weight,omitempty" yaml:"weight,omitempty"`
	Reps        int           `json:"reps" yaml:"reps"`
	RestTime    time.Duration `json:"rest_time" yaml:"rest_time"`
	IsCompleted bool          `json:"is_completed" yaml:"is_completed"`
	CompletedAt *time.Time    `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
	Notes       *string       `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// NewSet creates an uncompleted Set. A nil weight means bodyweight.
func NewSet(weight *float64, reps int) Set {
	return Set{
		ID:       uuid.New(),
		Weight:   weight,
		Reps:     reps,
		RestTime: DefaultRestTime,
	}
}

// Complete marks the set completed at the given instant. Completing an
// already completed set refreshes CompletedAt.
func (s *Set) Complete(at time.Time) {
	s.IsCompleted = true
	s.CompletedAt = &at
}

// IndexOfExercise returns the position of the exercise with the given ID, or -1.
func IndexOfExercise(exercises []Exercise, id uuid.UUID) int {
	for i := range exercises {
		if exercises[i].ID == id {
			return i
		}
	}
	return -1
}

// ErrNoMatch is returned when a reference matches nothing.
var ErrNoMatch = errors.New("no match")

// ResolveExercise finds an exercise by 1-based position or ID prefix.
func ResolveExercise(exercises []Exercise, ref string) (int, error) {
	ids := make([]uuid.UUID, len(exercises))
	for i := range exercises {
		ids[i] = exercises[i].ID
	}
	return resolve(ids, ref, "exercise")
}

// ResolveSet finds a set by 1-based position or ID prefix.
func ResolveSet(sets []Set, ref string) (int, error) {
	ids := make([]uuid.UUID, len(sets))
	for i := range sets {
		ids[i] = sets[i].ID
	}
	return resolve(ids, ref, "set")
}

func resolve(ids []uuid.UUID, ref, what string) (int, error) {
	ref = strings.TrimSpace(ref)
	if n, err := strconv.Atoi(ref); err == nil && len(ref) < 4 {
		if n < 1 || n > len(ids) {
			return -1, fmt.Errorf("%s %d: %w", what, n, ErrNoMatch)
		}
		return n - 1, nil
	}
	found := -1
	for i, id := range ids {
		if ref != "" && strings.HasPrefix(id.String(), ref) {
			if found >= 0 {
				return -1, fmt.Errorf("ambiguous %s reference %q", what, ref)
			}
			found = i
		}
	}
	if found < 0 {
		return -1, fmt.Errorf("%s %q: %w", what, ref, ErrNoMatch)
	}
	return found, nil
}

// CloneExercises deep-copies an exercise list.
func CloneExercises(exercises []Exercise) []Exercise {
	if exercises == nil {
		return nil
	}
	out := make([]Exercise, len(exercises))
	for i, e := range exercises {
		out[i] = e
		if e.Sets != nil {
			out[i].Sets = make([]Set, len(e.Sets))
			for j, s := range e.Sets {
				out[i].Sets[j] = cloneSet(s)
			}
		}
		if e.Notes != nil {
			notes := *e.Notes
			out[i].Notes = &notes
		}
		if e.TargetReps != nil {
			reps := *e.TargetReps
			out[i].TargetReps = &reps
		}
		if e.TargetWeight != nil {
			weight := *e.TargetWeight
			out[i].TargetWeight = &weight
		}
	}
	return out
}

// FreshExercises copies exercises from a blueprint, assigning new IDs to every
// exercise and set and clearing completion state.
func FreshExercises(blueprint []Exercise) []Exercise {
	out := CloneExercises(blueprint)
	for i := range out {
		out[i].ID = uuid.New()
		for j := range out[i].Sets {
			out[i].Sets[j].ID = uuid.New()
			out[i].Sets[j].IsCompleted = false
			out[i].Sets[j].CompletedAt = nil
		}
	}
	return out
}

func cloneSet(s Set) Set {
	c := s
	if s.Weight != nil {
		w := *s.Weight
		c.Weight = &w
	}
	if s.CompletedAt != nil {
		at := *s.CompletedAt
		c.CompletedAt = &at
	}
	if s.Notes != nil {
		n := *s.Notes
		c.Notes = &n
	}
	return c
}
