// ABOUTME: Contracts for the physiological-metrics provider and the notifier.
// ABOUTME: Both are external collaborators; failures degrade, never abort.
package health

import (
	"context"
	"errors"

	"github.com/harperreed/fitcore/internal/models"
)

// ErrPermissionDenied is returned when sensor data may not be read.
var ErrPermissionDenied = errors.New("health data permission denied")

// Provider supplies metrics for a running session. Calls may be slow and
// must not be made from the owner loop.
type Provider interface {
	RequestPermission(ctx context.Context) (bool, error)
	BeginSession(ctx context.Context) error
	PauseSession(ctx context.Context) error
	ResumeSession(ctx context.Context) error
	EndSession(ctx context.Context) error
	Snapshot(ctx context.Context) (models.MetricsSnapshot, error)
}

// Notification kinds.
const (
	KindRestComplete    = "rest_complete"
	KindSessionComplete = "session_complete"
)

// Haptic patterns.
const (
	HapticHeavy   = "heavy"
	HapticSuccess = "success"
	HapticClick   = "click"
)

// Notifier delivers user-facing alerts. Calls are fire-and-forget.
type Notifier interface {
	Notify(kind, title, body string)
	Haptic(kind string)
}

// Unavailable is a Provider for devices without sensors. Permission is
// always denied and snapshots are empty.
type Unavailable struct{}

// RequestPermission reports false.
func (Unavailable) RequestPermission(context.Context) (bool, error) { return false, nil }

// BeginSession does nothing.
func (Unavailable) BeginSession(context.Context) error { return nil }

// PauseSession does nothing.
func (Unavailable) PauseSession(context.Context) error { return nil }

// ResumeSession does nothing.
func (Unavailable) ResumeSession(context.Context) error { return nil }

// EndSession does nothing.
func (Unavailable) EndSession(context.Context) error { return nil }

// Snapshot returns ErrPermissionDenied.
func (Unavailable) Snapshot(context.Context) (models.MetricsSnapshot, error) {
	return models.MetricsSnapshot{}, ErrPermissionDenied
}
