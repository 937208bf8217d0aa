// ABOUTME: TemplateStore holding local and peer-synced workout templates.
// ABOUTME: A single list persisted as one blob; peer pushes replace it wholesale.
package templates

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/storage"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no template matches.
var ErrNotFound = errors.New("template not found")

// Store is the template catalogue. It is owned by the owner loop and is not
// safe for concurrent use.
type Store struct {
	store     storage.Gateway
	logger    *slog.Logger
	templates []models.WorkoutTemplate
	onChange  func([]models.WorkoutTemplate)
}

// New creates an empty store. Call Load to read persisted templates.
func New(store storage.Gateway, logger *slog.Logger) *Store {
	return &Store{store: store, logger: logger}
}

// OnChange registers a callback invoked after every mutation.
func (s *Store) OnChange(fn func([]models.WorkoutTemplate)) {
	s.onChange = fn
}

// Load reads persisted templates. A corrupt blob is logged and treated as
// empty.
func (s *Store) Load() {
	var list []models.WorkoutTemplate
	if _, err := storage.LoadJSON(s.store, storage.KeyUserTemplates, &list); err != nil {
		s.logger.Warn("discarding unreadable templates", "component", "templates", "error", err)
		list = nil
	}
	s.templates = list
}

// List returns a copy of every template in insertion order.
func (s *Store) List() []models.WorkoutTemplate {
	out := make([]models.WorkoutTemplate, len(s.templates))
	for i, t := range s.templates {
		out[i] = t.Clone()
	}
	return out
}

// Len returns the number of templates.
func (s *Store) Len() int {
	return len(s.templates)
}

// Get finds a template by id, unique id prefix, or exact name.
func (s *Store) Get(ref string) (models.WorkoutTemplate, error) {
	i, err := s.match(ref)
	if err != nil {
		return models.WorkoutTemplate{}, err
	}
	return s.templates[i].Clone(), nil
}

// Add appends a template, or replaces one with the same id.
func (s *Store) Add(t models.WorkoutTemplate) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("add template: %w", err)
	}
	if t.Origin == "" {
		t.Origin = models.OriginLocal
	}
	if i := s.index(t.ID); i >= 0 {
		s.templates[i] = t.Clone()
	} else {
		s.templates = append(s.templates, t.Clone())
	}
	s.changed()
	return nil
}

// Delete removes a template by reference.
func (s *Store) Delete(ref string) error {
	i, err := s.match(ref)
	if err != nil {
		return err
	}
	s.templates = append(s.templates[:i], s.templates[i+1:]...)
	s.changed()
	return nil
}

// ReplaceAll swaps the whole list for list, tagging every entry with origin.
// Entries that fail validation are dropped and logged.
func (s *Store) ReplaceAll(list []models.WorkoutTemplate, origin models.Origin) {
	next := make([]models.WorkoutTemplate, 0, len(list))
	for _, t := range list {
		if err := t.Validate(); err != nil {
			s.logger.Warn("dropping invalid template", "component", "templates", "error", err)
			continue
		}
		c := t.Clone()
		c.Origin = origin
		next = append(next, c)
	}
	s.templates = next
	s.changed()
}

// ReplaceFromPeer applies a template list pushed by the paired device.
func (s *Store) ReplaceFromPeer(list []models.WorkoutTemplate) {
	s.ReplaceAll(list, models.OriginPeer)
}

// Import parses a JSON or YAML template list and adds every entry as a local
// template. It returns the number imported.
func (s *Store) Import(data []byte) (int, error) {
	list, err := ParseList(data)
	if err != nil {
		return 0, err
	}
	for i := range list {
		if list[i].ID == uuid.Nil {
			list[i].ID = uuid.New()
		}
		for j := range list[i].Exercises {
			ex := &list[i].Exercises[j]
			if ex.ID == uuid.Nil {
				ex.ID = uuid.New()
			}
			if ex.RestTime == 0 {
				ex.RestTime = models.DefaultRestTime
			}
			for k := range ex.Sets {
				if ex.Sets[k].ID == uuid.Nil {
					ex.Sets[k].ID = uuid.New()
				}
				if ex.Sets[k].RestTime == 0 {
					ex.Sets[k].RestTime = ex.RestTime
				}
			}
		}
		list[i].Origin = models.OriginLocal
		if err := list[i].Validate(); err != nil {
			return i, fmt.Errorf("import template %d: %w", i, err)
		}
	}
	for _, t := range list {
		if i := s.index(t.ID); i >= 0 {
			s.templates[i] = t
		} else {
			s.templates = append(s.templates, t)
		}
	}
	s.changed()
	return len(list), nil
}

// ParseList decodes a template list from JSON, falling back to YAML.
func ParseList(data []byte) ([]models.WorkoutTemplate, error) {
	var list []models.WorkoutTemplate
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") || strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parse templates json: %w", err)
		}
		return list, nil
	}
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parse templates yaml: %w", err)
	}
	return list, nil
}

func (s *Store) changed() {
	if err := storage.SaveJSON(s.store, storage.KeyUserTemplates, s.templates); err != nil {
		s.logger.Warn("persist templates failed", "component", "templates", "error", err)
	}
	if s.onChange != nil {
		s.onChange(s.List())
	}
}

func (s *Store) index(id uuid.UUID) int {
	for i := range s.templates {
		if s.templates[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) match(ref string) (int, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return -1, fmt.Errorf("empty template reference")
	}
	for i := range s.templates {
		if strings.EqualFold(s.templates[i].Name, ref) {
			return i, nil
		}
	}
	lower := strings.ToLower(ref)
	found := -1
	for i := range s.templates {
		if strings.HasPrefix(s.templates[i].ID.String(), lower) {
			if found >= 0 {
				return -1, fmt.Errorf("ambiguous prefix %s: matches multiple records", ref)
			}
			found = i
		}
	}
	if found < 0 {
		return -1, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return found, nil
}
