// ABOUTME: Session lifecycle states and the events the controller publishes.
// ABOUTME: States marshal as lowercase names for persistence and display.
package session

import (
	"fmt"
	"time"

	"github.com/harperreed/fitcore/internal/models"
)

// State is the controller's lifecycle phase.
type State int

const (
	Idle State = iota
	PreSession
	Active
	Paused
	Completed
)

var stateNames = map[State]string{
	Idle:       "idle",
	PreSession: "pre_session",
	Active:     "active",
	Paused:     "paused",
	Completed:  "completed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText encodes the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	for st, n := range stateNames {
		if n == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state: %q", b)
}

// Running reports whether the session clock is live in this state.
func (s State) Running() bool {
	return s == PreSession || s == Active || s == Paused
}

// EventKind classifies controller events.
type EventKind string

const (
	EventState     EventKind = "state"
	EventUpdated   EventKind = "updated"
	EventTick      EventKind = "tick"
	EventCompleted EventKind = "completed"
	EventMetrics   EventKind = "metrics"
	EventRemote    EventKind = "remote"
)

// Event is published after every observable change.
type Event struct {
	Kind    EventKind
	State   State
	Workout *models.Workout
	Elapsed time.Duration
	At      time.Time
}

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	State         State                   `json:"state"`
	Workout       *models.Workout         `json:"workout,omitempty"`
	Draft         []models.Exercise       `json:"draft,omitempty"`
	Elapsed       time.Duration           `json:"elapsed"`
	StartedAt     *time.Time              `json:"started_at,omitempty"`
	LastCompleted *models.Workout         `json:"last_completed,omitempty"`
	Metrics       *models.MetricsSnapshot `json:"metrics,omitempty"`
}
