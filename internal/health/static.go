// ABOUTME: In-memory Provider with a settable snapshot and permission.
// ABOUTME: Used by tests and by the MCP server to accept pushed readings.
package health

import (
	"context"
	"sync"

	"github.com/harperreed/fitcore/internal/models"
)

// Static returns whatever snapshot was last set.
type Static struct {
	mu       sync.Mutex
	granted  bool
	snapshot models.MetricsSnapshot
	sessions int
	ended    int
	paused   int
	resumed  int
	// Block, when set, is waited on by Snapshot to simulate a slow sensor.
	Block chan struct{}
}

// NewStatic creates a provider with the given permission.
func NewStatic(granted bool) *Static {
	return &Static{granted: granted}
}

// Set replaces the snapshot.
func (s *Static) Set(m models.MetricsSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshot = m.Clone()
}

// RequestPermission reports the configured permission.
func (s *Static) RequestPermission(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted, nil
}

// BeginSession counts session starts.
func (s *Static) BeginSession(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions++
	return nil
}

// EndSession counts session ends.
func (s *Static) EndSession(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended++
	return nil
}

// PauseSession counts session pauses.
func (s *Static) PauseSession(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused++
	return nil
}

// ResumeSession counts session resumes.
func (s *Static) ResumeSession(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumed++
	return nil
}

// Pauses returns pause and resume counts.
func (s *Static) Pauses() (paused, resumed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused, s.resumed
}

// Sessions returns begin and end counts.
func (s *Static) Sessions() (began, ended int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions, s.ended
}

// Snapshot returns the stored snapshot, or ErrPermissionDenied.
func (s *Static) Snapshot(ctx context.Context) (models.MetricsSnapshot, error) {
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return models.MetricsSnapshot{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.granted {
		return models.MetricsSnapshot{}, ErrPermissionDenied
	}
	return s.snapshot.Clone(), nil
}
