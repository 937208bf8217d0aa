// ABOUTME: Provider that reads metrics samples from a JSON or YAML file.
// ABOUTME: An external sensor bridge keeps the file current; absent file means no data.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/harperreed/fitcore/internal/models"
	"gopkg.in/yaml.v3"
)

// FileProvider reads the latest MetricsSnapshot from a file on each call.
type FileProvider struct {
	path string
	now  func() time.Time

	mu       sync.Mutex
	active   bool
	began    time.Time
	pausedAt time.Time
	idle     time.Duration
}

// NewFileProvider creates a provider reading from path.
func NewFileProvider(path string, now func() time.Time) *FileProvider {
	if now == nil {
		now = time.Now
	}
	return &FileProvider{path: path, now: now}
}

// RequestPermission reports whether the samples file can be read.
func (p *FileProvider) RequestPermission(context.Context) (bool, error) {
	if p.path == "" {
		return false, nil
	}
	if _, err := os.Stat(p.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat metrics file: %w", err)
	}
	return true, nil
}

// BeginSession records the session start so snapshots can carry a duration.
func (p *FileProvider) BeginSession(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = true
	p.began = p.now()
	p.pausedAt = time.Time{}
	p.idle = 0
	return nil
}

// PauseSession stops the snapshot duration from advancing.
func (p *FileProvider) PauseSession(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.active && p.pausedAt.IsZero() {
		p.pausedAt = p.now()
	}
	return nil
}

// ResumeSession lets the snapshot duration advance again.
func (p *FileProvider) ResumeSession(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pausedAt.IsZero() {
		p.idle += p.now().Sub(p.pausedAt)
		p.pausedAt = time.Time{}
	}
	return nil
}

// EndSession stops duration tracking.
func (p *FileProvider) EndSession(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active = false
	return nil
}

// Snapshot reads the file. Fields absent from the file stay absent.
func (p *FileProvider) Snapshot(ctx context.Context) (models.MetricsSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return models.MetricsSnapshot{}, err
	}
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.MetricsSnapshot{}, ErrPermissionDenied
		}
		return models.MetricsSnapshot{}, fmt.Errorf("read metrics file: %w", err)
	}

	var snap models.MetricsSnapshot
	if strings.HasSuffix(p.path, ".yaml") || strings.HasSuffix(p.path, ".yml") {
		err = yaml.Unmarshal(data, &snap)
	} else {
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return models.MetricsSnapshot{}, fmt.Errorf("decode metrics file: %w", err)
	}

	now := p.now()
	snap.SampledAt = now
	p.mu.Lock()
	if p.active && snap.Duration == nil {
		end := now
		if !p.pausedAt.IsZero() {
			end = p.pausedAt
		}
		d := end.Sub(p.began) - p.idle
		snap.Duration = &d
	}
	p.mu.Unlock()
	return snap, nil
}
