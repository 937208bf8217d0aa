// ABOUTME: Tests for the workout history archive and export.
// ABOUTME: Covers upsert, cap, prefix lookup, pruning, persistence and formats.
package history

import (
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

var now = time.Date(2025, 3, 12, 18, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func finished(name string, start time.Time, d time.Duration) models.Workout {
	w := models.NewWorkout(name, []models.Exercise{
		models.NewExercise("Squat", "legs", models.NewSet(models.Float(100), 5)),
	}, start)
	w.Finish(start.Add(d))
	return *w
}

func TestArchive_SaveAndReload(t *testing.T) {
	store := storage.NewMemory()
	a := New(store, quietLogger(), 0)

	w := finished("Legs", now.Add(-time.Hour), 45*time.Minute)
	require.True(t, a.Save(w, now))
	assert.True(t, a.Contains(w.ID))
	assert.Equal(t, 1, a.Stats().TotalWorkouts)

	reloaded := New(store, quietLogger(), 0)
	reloaded.Load(now)
	require.Equal(t, 1, reloaded.Len())
	got, err := reloaded.Get(w.ID.String()[:8])
	require.NoError(t, err)
	assert.Equal(t, "Legs", got.Name)

	var stats models.WorkoutStats
	found, err := storage.LoadJSON(store, storage.KeyWorkoutStats, &stats)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 1, stats.TotalWorkouts)
}

func TestArchive_SaveUpserts(t *testing.T) {
	a := New(storage.NewMemory(), quietLogger(), 0)
	w := finished("Legs", now.Add(-time.Hour), 30*time.Minute)

	a.Save(w, now)
	w.Name = "Leg day"
	assert.False(t, a.Save(w, now))

	assert.Equal(t, 1, a.Len())
	got, err := a.Get(w.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Leg day", got.Name)
}

func TestArchive_CapDropsOldest(t *testing.T) {
	a := New(storage.NewMemory(), quietLogger(), 0)
	first := finished("w0", now.Add(-200*time.Hour), time.Minute)
	a.Save(first, now)
	for i := 1; i <= MaxWorkouts; i++ {
		a.Save(finished("w", now.Add(-time.Duration(200-i)*time.Hour), time.Minute), now)
	}

	assert.Equal(t, MaxWorkouts, a.Len())
	assert.False(t, a.Contains(first.ID))
}

func TestArchive_ListNewestFirst(t *testing.T) {
	a := New(storage.NewMemory(), quietLogger(), 0)
	a.Save(finished("old", now.Add(-48*time.Hour), time.Minute), now)
	a.Save(finished("new", now.Add(-time.Hour), time.Minute), now)
	a.Save(finished("mid", now.Add(-24*time.Hour), time.Minute), now)

	list := a.List(2)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].Name)
	assert.Equal(t, "mid", list[1].Name)
}

func TestArchive_GetErrors(t *testing.T) {
	a := New(storage.NewMemory(), quietLogger(), 0)
	_, err := a.Get("deadbeef")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = a.Get("")
	assert.Error(t, err)
}

func TestArchive_DeleteAndPrune(t *testing.T) {
	a := New(storage.NewMemory(), quietLogger(), 0)
	keep := finished("keep", now.Add(-time.Hour), time.Minute)
	drop := finished("drop", now.Add(-40*24*time.Hour), time.Minute)
	gone := finished("gone", now.Add(-2*time.Hour), time.Minute)
	a.Save(keep, now)
	a.Save(drop, now)
	a.Save(gone, now)

	require.NoError(t, a.Delete(gone.ID.String(), now))
	assert.False(t, a.Contains(gone.ID))

	removed := a.Prune(now.AddDate(0, 0, -30), now)
	assert.Equal(t, 1, removed)
	assert.True(t, a.Contains(keep.ID))
	assert.False(t, a.Contains(drop.ID))
}

func TestArchive_LoadCorrupt(t *testing.T) {
	store := storage.NewMemory()
	require.NoError(t, store.Set(storage.KeySavedWorkouts, []byte("[{")))

	a := New(store, quietLogger(), 0)
	a.Load(now)

	assert.Equal(t, 0, a.Len())
}

func TestArchive_PersistFailureKeepsMemory(t *testing.T) {
	store := storage.NewMemory()
	store.FailWrites(true)
	a := New(store, quietLogger(), 0)

	w := finished("Legs", now.Add(-time.Hour), time.Minute)
	a.Save(w, now)

	assert.True(t, a.Contains(w.ID))
}

func TestExportFormats(t *testing.T) {
	a := New(storage.NewMemory(), quietLogger(), 0)
	w := finished("Legs", now.Add(-time.Hour), 45*time.Minute)
	w.WithNotes("felt strong")
	a.Save(w, now)

	t.Run("json", func(t *testing.T) {
		out, err := a.Export(FormatJSON, nil, now)
		require.NoError(t, err)
		var data ExportData
		require.NoError(t, json.Unmarshal(out, &data))
		require.Len(t, data.Workouts, 1)
		assert.Equal(t, w.ID, data.Workouts[0].ID)
		assert.Equal(t, "fitcore", data.Tool)
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := a.Export(FormatYAML, nil, now)
		require.NoError(t, err)
		var data map[string]any
		require.NoError(t, yaml.Unmarshal(out, &data))
		assert.Equal(t, "fitcore", data["tool"])
		assert.Contains(t, string(out), "100kg x 5")
	})

	t.Run("markdown", func(t *testing.T) {
		out, err := a.Export(FormatMarkdown, nil, now)
		require.NoError(t, err)
		s := string(out)
		assert.True(t, strings.HasPrefix(s, "# Workout Export"))
		assert.Contains(t, s, "| Legs |")
		assert.Contains(t, s, "felt strong")
	})

	t.Run("since filters", func(t *testing.T) {
		since := now
		out, err := a.Export(FormatJSON, &since, now)
		require.NoError(t, err)
		var data ExportData
		require.NoError(t, json.Unmarshal(out, &data))
		assert.Empty(t, data.Workouts)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := a.Export("csv", nil, now)
		assert.Error(t, err)
	})
}

func TestFormatSet(t *testing.T) {
	s := models.NewSet(nil, 12)
	assert.Equal(t, "bodyweight x 12", FormatSet(s))

	s = models.NewSet(models.Float(62.5), 8)
	s.Complete(now)
	assert.Equal(t, "62.5kg x 8 ✓", FormatSet(s))
}

func TestBackupRestoreRebuildsArchiveAndStats(t *testing.T) {
	src := New(storage.NewMemory(), quietLogger(), 0)
	legs := finished("Legs", now.Add(-48*time.Hour), 45*time.Minute)
	push := finished("Push", now.Add(-2*time.Hour), 30*time.Minute)
	src.Save(legs, now)
	src.Save(push, now)

	raw, err := src.Export(FormatJSON, nil, now)
	require.NoError(t, err)
	data, err := DecodeBackup(raw)
	require.NoError(t, err)
	assert.Equal(t, BackupVersion, data.Version)

	store := storage.NewMemory()
	dst := New(store, quietLogger(), 0)
	dst.Save(finished("Local", now.Add(-time.Hour), 20*time.Minute), now)

	res := dst.Restore(data, false, now)
	assert.Equal(t, RestoreResult{Added: 2}, res)
	assert.Equal(t, 3, dst.Len())
	assert.Equal(t, 3, dst.Stats().TotalWorkouts)
	assert.Equal(t, 95*time.Minute, dst.Stats().TotalDuration)

	again := dst.Restore(data, false, now)
	assert.Equal(t, RestoreResult{Replaced: 2}, again, "restoring twice does not duplicate")

	var persisted models.WorkoutStats
	found, err := storage.LoadJSON(store, storage.KeyWorkoutStats, &persisted)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 3, persisted.TotalWorkouts)

	replaced := dst.Restore(data, true, now)
	assert.Equal(t, RestoreResult{Added: 2}, replaced)
	assert.Equal(t, 2, dst.Len())
	assert.Equal(t, "Push", dst.List(1)[0].Name)
}

func TestDecodeBackupRejectsUnknownVersion(t *testing.T) {
	_, err := DecodeBackup([]byte(`{"version":"2.0","workouts":[]}`))
	assert.ErrorIs(t, err, ErrBackupVersion)

	_, err = DecodeBackup([]byte(`not json`))
	assert.Error(t, err)
}

func TestRestoreTrimsToCap(t *testing.T) {
	data := &ExportData{Version: BackupVersion}
	for i := 0; i < MaxWorkouts+5; i++ {
		data.Workouts = append(data.Workouts, finished("w", now.Add(-time.Duration(i+1)*time.Hour), time.Minute))
	}
	a := New(storage.NewMemory(), quietLogger(), 0)

	res := a.Restore(data, false, now)

	assert.Equal(t, 5, res.Dropped)
	assert.Equal(t, MaxWorkouts, a.Len())
	oldest := a.List(0)[MaxWorkouts-1]
	assert.Equal(t, now.Add(-time.Duration(MaxWorkouts)*time.Hour), oldest.StartTime)
}
