// ABOUTME: Export of workout history in JSON, YAML and Markdown, and restore from JSON backups.
// ABOUTME: JSON keeps full fidelity and is the backup format; YAML and Markdown are human-oriented.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harperreed/fitcore/internal/models"
	"gopkg.in/yaml.v3"
)

// ExportData represents the full export format for workout history.
type ExportData struct {
	Version    string              `json:"version" yaml:"version"`
	ExportedAt time.Time           `json:"exported_at" yaml:"exported_at"`
	Tool       string              `json:"tool" yaml:"tool"`
	Stats      models.WorkoutStats `json:"stats" yaml:"stats"`
	Workouts   []models.Workout    `json:"workouts" yaml:"workouts"`
}

// Formats accepted by Export.
const (
	FormatJSON     = "json"
	FormatYAML     = "yaml"
	FormatMarkdown = "markdown"
)

// BackupVersion is written to every export. Restore accepts any 1.x backup.
const BackupVersion = "1.0"

// ErrBackupVersion is returned when a backup was written by an incompatible
// version.
var ErrBackupVersion = errors.New("unsupported backup version")

// Snapshot collects every archived workout for export.
func (a *Archive) Snapshot(now time.Time) *ExportData {
	return &ExportData{
		Version:    BackupVersion,
		ExportedAt: now,
		Tool:       "fitcore",
		Stats:      a.StatsAt(now),
		Workouts:   a.List(0),
	}
}

// Export renders the archive in the given format. Workouts that started
// before since are omitted when since is non-nil.
func (a *Archive) Export(format string, since *time.Time, now time.Time) ([]byte, error) {
	data := a.Snapshot(now)
	if since != nil {
		filtered := data.Workouts[:0]
		for _, w := range data.Workouts {
			if !w.StartTime.Before(*since) {
				filtered = append(filtered, w)
			}
		}
		data.Workouts = filtered
	}

	switch format {
	case FormatJSON, "":
		return json.MarshalIndent(data, "", "  ")
	case FormatYAML:
		return exportYAML(data)
	case FormatMarkdown, "md":
		return []byte(exportMarkdown(data)), nil
	default:
		return nil, fmt.Errorf("unknown export format: %q", format)
	}
}

type yamlWorkout struct {
	ID        string         `yaml:"id"`
	Name      string         `yaml:"name"`
	StartedAt string         `yaml:"started_at"`
	Duration  string         `yaml:"duration,omitempty"`
	Notes     string         `yaml:"notes,omitempty"`
	Calories  float64        `yaml:"calories,omitempty"`
	Exercises []yamlExercise `yaml:"exercises,omitempty"`
}

type yamlExercise struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category,omitempty"`
	Sets     []string `yaml:"sets,omitempty"`
}

func exportYAML(data *ExportData) ([]byte, error) {
	out := struct {
		Version    string        `yaml:"version"`
		ExportedAt string        `yaml:"exported_at"`
		Tool       string        `yaml:"tool"`
		Stats      yamlStats     `yaml:"stats"`
		Workouts   []yamlWorkout `yaml:"workouts"`
	}{
		Version:    data.Version,
		ExportedAt: data.ExportedAt.Format(time.RFC3339),
		Tool:       data.Tool,
		Stats: yamlStats{
			TotalWorkouts:    data.Stats.TotalWorkouts,
			TotalDuration:    data.Stats.TotalDuration.String(),
			AverageDuration:  data.Stats.AverageDuration.String(),
			TotalCalories:    data.Stats.TotalCalories,
			MostUsedExercise: data.Stats.MostUsedExercise,
			WeeklyProgress:   fmt.Sprintf("%d/%d", data.Stats.WeeklyProgress, data.Stats.WeeklyGoal),
		},
		Workouts: make([]yamlWorkout, 0, len(data.Workouts)),
	}

	for _, w := range data.Workouts {
		yw := yamlWorkout{
			ID:        w.ID.String()[:8],
			Name:      w.Name,
			StartedAt: w.StartTime.Format(time.RFC3339),
		}
		if w.EndTime != nil {
			yw.Duration = w.Duration().Round(time.Second).String()
		}
		if w.Notes != nil {
			yw.Notes = *w.Notes
		}
		if w.Metrics != nil && w.Metrics.CaloriesBurned != nil {
			yw.Calories = *w.Metrics.CaloriesBurned
		}
		for _, e := range w.Exercises {
			ye := yamlExercise{Name: e.Name, Category: e.Category}
			for _, s := range e.Sets {
				ye.Sets = append(ye.Sets, FormatSet(s))
			}
			yw.Exercises = append(yw.Exercises, ye)
		}
		out.Workouts = append(out.Workouts, yw)
	}

	return yaml.Marshal(out)
}

type yamlStats struct {
	TotalWorkouts    int     `yaml:"total_workouts"`
	TotalDuration    string  `yaml:"total_duration"`
	AverageDuration  string  `yaml:"average_duration"`
	TotalCalories    float64 `yaml:"total_calories"`
	MostUsedExercise string  `yaml:"most_used_exercise,omitempty"`
	WeeklyProgress   string  `yaml:"weekly_progress"`
}

func exportMarkdown(data *ExportData) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Workout Export - %s\n\n", data.ExportedAt.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", data.ExportedAt.Format(time.RFC3339)))

	sb.WriteString("## Stats\n\n")
	sb.WriteString(fmt.Sprintf("- Workouts: %d\n", data.Stats.TotalWorkouts))
	sb.WriteString(fmt.Sprintf("- Total time: %s\n", data.Stats.TotalDuration.Round(time.Minute)))
	sb.WriteString(fmt.Sprintf("- Weekly goal: %d/%d\n\n", data.Stats.WeeklyProgress, data.Stats.WeeklyGoal))

	if len(data.Workouts) == 0 {
		sb.WriteString("No workouts.\n")
		return sb.String()
	}

	sb.WriteString("## Workouts\n\n")
	sb.WriteString("| Date | Name | Duration | Sets | Notes |\n")
	sb.WriteString("|------|------|----------|------|-------|\n")
	for _, w := range data.Workouts {
		notes := ""
		if w.Notes != nil {
			notes = *w.Notes
		}
		sb.WriteString(fmt.Sprintf("| %s | %s | %s | %d/%d | %s |\n",
			w.StartTime.Format("2006-01-02 15:04"),
			w.Name,
			w.Duration().Round(time.Minute),
			w.CompletedSets(), w.TotalSets(),
			notes))
	}

	return sb.String()
}

// FormatSet renders a set as "60kg x 8" or "bodyweight x 12", with a check
// mark when completed.
func FormatSet(s models.Set) string {
	weight := "bodyweight"
	if s.Weight != nil {
		weight = fmt.Sprintf("%gkg", *s.Weight)
	}
	out := fmt.Sprintf("%s x %d", weight, s.Reps)
	if s.IsCompleted {
		out += " ✓"
	}
	return out
}

// DecodeBackup parses a JSON export and checks its version.
func DecodeBackup(raw []byte) (*ExportData, error) {
	var data ExportData
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode backup: %w", err)
	}
	if data.Version != "1" && !strings.HasPrefix(data.Version, "1.") {
		return nil, fmt.Errorf("%w: %q", ErrBackupVersion, data.Version)
	}
	return &data, nil
}

// RestoreResult summarises a restore.
type RestoreResult struct {
	Added    int
	Replaced int
	Dropped  int
}

// Restore merges a backup into the archive. Workouts with a known id replace
// the archived copy; with replace set the archive is cleared first. The
// result is ordered by start time and trimmed to MaxWorkouts, then stats
// are recomputed and both blobs persisted.
func (a *Archive) Restore(data *ExportData, replace bool, now time.Time) RestoreResult {
	var res RestoreResult
	if replace {
		a.workouts = nil
	}
	for _, w := range data.Workouts {
		w.IsActive = false
		if i := a.index(w.ID); i >= 0 {
			a.workouts[i] = w
			res.Replaced++
			continue
		}
		a.workouts = append(a.workouts, w)
		res.Added++
	}
	sort.SliceStable(a.workouts, func(i, j int) bool {
		return a.workouts[i].StartTime.Before(a.workouts[j].StartTime)
	})
	if over := len(a.workouts) - MaxWorkouts; over > 0 {
		a.workouts = append([]models.Workout(nil), a.workouts[over:]...)
		res.Dropped = over
	}
	a.refresh(now)
	return res
}
