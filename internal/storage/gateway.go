// ABOUTME: Gateway interface for durable opaque key/value persistence.
// ABOUTME: Defines the key catalogue and JSON helpers shared by every backend.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("key not found")

// Keys persisted by the session engine.
const (
	KeySavedWorkouts    = "saved_workouts"
	KeyWorkoutStats     = "workout_stats"
	KeyHealthMetrics    = "health_metrics"
	KeyUserTemplates    = "user_templates"
	KeySessionStartDate = "session_start_date"
	KeyCurrentWorkout   = "current_workout"
	KeySessionDraft     = "session_draft"
	KeyLastSyncDate     = "last_sync_date"
)

// AllKeys lists every key the engine persists.
var AllKeys = []string{
	KeySavedWorkouts,
	KeyWorkoutStats,
	KeyHealthMetrics,
	KeyUserTemplates,
	KeySessionStartDate,
	KeyCurrentWorkout,
	KeySessionDraft,
	KeyLastSyncDate,
}

// Gateway stores opaque blobs by key.
// This interface allows swapping implementations (e.g., for testing).
type Gateway interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// LoadJSON decodes the value stored at key into v. It reports false with a
// nil error when the key is absent.
func LoadJSON(g Gateway, key string, v any) (bool, error) {
	data, err := g.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// SaveJSON encodes v and stores it at key.
func SaveJSON(g Gateway, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := g.Set(key, data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// DataDir returns the default data directory following the XDG base directory layout.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, _ := os.UserHomeDir()
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "fitcore")
}

// Open creates a Gateway for the named backend rooted at dataDir.
func Open(backend, dataDir string) (Gateway, error) {
	switch backend {
	case "", "badger":
		return OpenBadger(filepath.Join(dataDir, "badger"))
	case "sqlite":
		return OpenSQLite(filepath.Join(dataDir, "fitcore.db"))
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}
