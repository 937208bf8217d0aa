// ABOUTME: Read-mostly archive of completed workouts plus derived stats.
// ABOUTME: Persists the workout list and stats blobs through a storage.Gateway.
package history

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/storage"
)

// MaxWorkouts is the number of archived workouts retained.
const MaxWorkouts = 100

// ErrNotFound is returned when no archived workout matches an id.
var ErrNotFound = errors.New("workout not found")

// Archive holds completed workouts, oldest first.
// It is owned by the owner loop and is not safe for concurrent use.
type Archive struct {
	store      storage.Gateway
	logger     *slog.Logger
	weeklyGoal int

	workouts []models.Workout
	stats    models.WorkoutStats
}

// New creates an empty archive. Call Load to read persisted state.
func New(store storage.Gateway, logger *slog.Logger, weeklyGoal int) *Archive {
	if weeklyGoal <= 0 {
		weeklyGoal = models.DefaultWeeklyGoal
	}
	return &Archive{
		store:      store,
		logger:     logger,
		weeklyGoal: weeklyGoal,
		stats:      models.WorkoutStats{WeeklyGoal: weeklyGoal},
	}
}

// Load reads the persisted archive. A corrupt blob is logged and treated as
// empty.
func (a *Archive) Load(now time.Time) {
	var workouts []models.Workout
	if _, err := storage.LoadJSON(a.store, storage.KeySavedWorkouts, &workouts); err != nil {
		a.logger.Warn("discarding unreadable workout history", "component", "history", "error", err)
		workouts = nil
	}
	a.workouts = workouts
	a.stats = models.ComputeStats(a.workouts, a.weeklyGoal, now)
}

// Save archives w, replacing any entry with the same id. The oldest entries
// are dropped beyond MaxWorkouts. It reports whether w was new.
func (a *Archive) Save(w models.Workout, now time.Time) bool {
	w.IsActive = false
	added := true
	if i := a.index(w.ID); i >= 0 {
		a.workouts[i] = w
		added = false
	} else {
		a.workouts = append(a.workouts, w)
	}
	if over := len(a.workouts) - MaxWorkouts; over > 0 {
		a.workouts = append([]models.Workout(nil), a.workouts[over:]...)
	}
	a.refresh(now)
	return added
}

// Contains reports whether a workout with id is archived.
func (a *Archive) Contains(id uuid.UUID) bool {
	return a.index(id) >= 0
}

// Len returns the number of archived workouts.
func (a *Archive) Len() int {
	return len(a.workouts)
}

// List returns up to limit workouts, most recent first. A limit of zero
// returns all of them.
func (a *Archive) List(limit int) []models.Workout {
	out := make([]models.Workout, 0, len(a.workouts))
	for i := len(a.workouts) - 1; i >= 0; i-- {
		out = append(out, *a.workouts[i].Clone())
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Get finds a workout by id or unique id prefix.
func (a *Archive) Get(idOrPrefix string) (models.Workout, error) {
	i, err := a.match(idOrPrefix)
	if err != nil {
		return models.Workout{}, err
	}
	return *a.workouts[i].Clone(), nil
}

// Delete removes a workout by id or unique id prefix.
func (a *Archive) Delete(idOrPrefix string, now time.Time) error {
	i, err := a.match(idOrPrefix)
	if err != nil {
		return err
	}
	a.workouts = append(a.workouts[:i], a.workouts[i+1:]...)
	a.refresh(now)
	return nil
}

// Prune drops workouts that started before cutoff and returns how many were
// removed.
func (a *Archive) Prune(cutoff, now time.Time) int {
	kept := a.workouts[:0]
	for _, w := range a.workouts {
		if !w.StartTime.Before(cutoff) {
			kept = append(kept, w)
		}
	}
	removed := len(a.workouts) - len(kept)
	a.workouts = kept
	if removed > 0 {
		a.refresh(now)
	}
	return removed
}

// Stats returns the stats as of the last change.
func (a *Archive) Stats() models.WorkoutStats {
	return a.stats
}

// StatsAt recomputes stats as of now without persisting them.
func (a *Archive) StatsAt(now time.Time) models.WorkoutStats {
	return models.ComputeStats(a.workouts, a.weeklyGoal, now)
}

func (a *Archive) refresh(now time.Time) {
	a.stats = models.ComputeStats(a.workouts, a.weeklyGoal, now)
	if err := storage.SaveJSON(a.store, storage.KeySavedWorkouts, a.workouts); err != nil {
		a.logger.Warn("persist workout history failed", "component", "history", "error", err)
	}
	if err := storage.SaveJSON(a.store, storage.KeyWorkoutStats, a.stats); err != nil {
		a.logger.Warn("persist workout stats failed", "component", "history", "error", err)
	}
}

func (a *Archive) index(id uuid.UUID) int {
	for i := range a.workouts {
		if a.workouts[i].ID == id {
			return i
		}
	}
	return -1
}

func (a *Archive) match(idOrPrefix string) (int, error) {
	idOrPrefix = strings.ToLower(strings.TrimSpace(idOrPrefix))
	if idOrPrefix == "" {
		return -1, fmt.Errorf("empty workout id")
	}
	found := -1
	for i := range a.workouts {
		if strings.HasPrefix(a.workouts[i].ID.String(), idOrPrefix) {
			if found >= 0 {
				return -1, fmt.Errorf("ambiguous prefix %s: matches multiple records", idOrPrefix)
			}
			found = i
		}
	}
	if found < 0 {
		return -1, fmt.Errorf("%w: %s", ErrNotFound, idOrPrefix)
	}
	return found, nil
}
