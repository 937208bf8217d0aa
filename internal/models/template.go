// ABOUTME: WorkoutTemplate model and Difficulty enum.
// ABOUTME: Templates are exercise blueprints that live sessions are started from.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Difficulty grades a template.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// ParseDifficulty validates a difficulty string.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case DifficultyBeginner, DifficultyIntermediate, DifficultyAdvanced:
		return d, nil
	default:
		return "", fmt.Errorf("unknown difficulty: %q", s)
	}
}

// Origin records where a template came from.
type Origin string

const (
	OriginLocal Origin = "local"
	OriginPeer  Origin = "peer"
)

// WorkoutTemplate is a reusable workout blueprint.
type WorkoutTemplate struct {
	ID                uuid.UUID     `json:"id" yaml:"id"`
	Name              string        `json:"name" yaml:"name"`
	Exercises         []Exercise    `json:"exercises" yaml:"exercises"`
	Category          string        `json:"category" yaml:"category"`
	Difficulty        Difficulty    `json:"difficulty" yaml:"difficulty"`
	EstimatedDuration time.Duration `json:"estimated_duration" yaml:"estimated_duration"`
	Description       *string       `json:"description,omitempty" yaml:"description,omitempty"`
	Origin            Origin        `json:"origin,omitempty" yaml:"origin,omitempty"`
}

// NewWorkoutTemplate creates a local template with a generated UUID.
func NewWorkoutTemplate(name, category string, difficulty Difficulty, estimated time.Duration, exercises []Exercise) WorkoutTemplate {
	return WorkoutTemplate{
		ID:                uuid.New(),
		Name:              name,
		Exercises:         exercises,
		Category:          category,
		Difficulty:        difficulty,
		EstimatedDuration: estimated,
		Origin:            OriginLocal,
	}
}

// Clone returns a deep copy of the template.
func (t WorkoutTemplate) Clone() WorkoutTemplate {
	c := t
	c.Exercises = CloneExercises(t.Exercises)
	if t.Description != nil {
		d := *t.Description
		c.Description = &d
	}
	return c
}

// Validate checks the fields a template must carry.
func (t WorkoutTemplate) Validate() error {
	if t.ID == uuid.Nil {
		return fmt.Errorf("template has no id")
	}
	if t.Name == "" {
		return fmt.Errorf("template %s has no name", t.ID)
	}
	if t.Difficulty != "" {
		if _, err := ParseDifficulty(string(t.Difficulty)); err != nil {
			return err
		}
	}
	return nil
}
