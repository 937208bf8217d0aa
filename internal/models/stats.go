// ABOUTME: WorkoutStats aggregate recomputed from workout history.
// ABOUTME: Tracks totals, averages and progress toward a weekly goal.
package models

import "time"

// DefaultWeeklyGoal is the number of workouts per week the stats aim for.
const DefaultWeeklyGoal = 3

// WorkoutStats summarises archived workouts.
type WorkoutStats struct {
	TotalWorkouts    int           `json:"total_workouts" yaml:"total_workouts"`
	TotalDuration    time.Duration `json:"total_duration" yaml:"total_duration"`
	AverageDuration  time.Duration `json:"average_duration" yaml:"average_duration"`
	LongestWorkout   time.Duration `json:"longest_workout" yaml:"longest_workout"`
	TotalCalories    float64       `json:"total_calories" yaml:"total_calories"`
	MostUsedExercise string        `json:"most_used_exercise,omitempty" yaml:"most_used_exercise,omitempty"`
	WeeklyGoal       int           `json:"weekly_goal" yaml:"weekly_goal"`
	WeeklyProgress   int           `json:"weekly_progress" yaml:"weekly_progress"`
	LastWorkoutAt    *time.Time    `json:"last_workout_at,omitempty" yaml:"last_workout_at,omitempty"`
}

// ComputeStats derives stats from archived workouts as of now. The week
// starts on Monday in now's location.
func ComputeStats(workouts []Workout, weeklyGoal int, now time.Time) WorkoutStats {
	if weeklyGoal <= 0 {
		weeklyGoal = DefaultWeeklyGoal
	}
	stats := WorkoutStats{WeeklyGoal: weeklyGoal}
	weekStart := StartOfWeek(now)
	counts := make(map[string]int)
	best := 0

	for i := range workouts {
		w := &workouts[i]
		d := w.Duration()
		stats.TotalWorkouts++
		stats.TotalDuration += d
		if d > stats.LongestWorkout {
			stats.LongestWorkout = d
		}
		if w.Metrics != nil && w.Metrics.CaloriesBurned != nil {
			stats.TotalCalories += *w.Metrics.CaloriesBurned
		}
		if !w.StartTime.Before(weekStart) {
			stats.WeeklyProgress++
		}
		if stats.LastWorkoutAt == nil || w.StartTime.After(*stats.LastWorkoutAt) {
			at := w.StartTime
			stats.LastWorkoutAt = &at
		}
		for _, e := range w.Exercises {
			counts[e.Name]++
			if c := counts[e.Name]; c > best || (c == best && e.Name < stats.MostUsedExercise) {
				best = c
				stats.MostUsedExercise = e.Name
			}
		}
	}
	if stats.TotalWorkouts > 0 {
		stats.AverageDuration = stats.TotalDuration / time.Duration(stats.TotalWorkouts)
	}
	return stats
}

// GoalMet reports whether the weekly goal has been reached.
func (s WorkoutStats) GoalMet() bool {
	return s.WeeklyProgress >= s.WeeklyGoal
}

// StartOfWeek returns Monday 00:00 of the week containing t.
func StartOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -offset)
}
