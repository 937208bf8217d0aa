// ABOUTME: MetricsSnapshot model for externally sourced physiological readings.
// ABOUTME: Every field is optional; absence means "not yet sampled", not zero.
package models

import "time"

// MetricsSnapshot is a point-in-time read of session metrics.
type MetricsSnapshot struct {
	HeartRate        *float64       `json:"heart_rate,omitempty" yaml:"heart_rate,omitempty"`
	CaloriesBurned   *float64       `json:"calories_burned,omitempty" yaml:"calories_burned,omitempty"`
	ActiveEnergy     *float64       `json:"active_energy,omitempty" yaml:"active_energy,omitempty"`
	Duration         *time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
	MinHeartRate     *float64       `json:"min_heart_rate,omitempty" yaml:"min_heart_rate,omitempty"`
	AverageHeartRate *float64       `json:"average_heart_rate,omitempty" yaml:"average_heart_rate,omitempty"`
	MaxHeartRate     *float64       `json:"max_heart_rate,omitempty" yaml:"max_heart_rate,omitempty"`
	SampledAt        time.Time      `json:"sampled_at" yaml:"sampled_at"`
}

// IsEmpty reports whether no field has been sampled.
func (m MetricsSnapshot) IsEmpty() bool {
	return m.HeartRate == nil && m.CaloriesBurned == nil && m.ActiveEnergy == nil &&
		m.Duration == nil && m.MinHeartRate == nil && m.AverageHeartRate == nil &&
		m.MaxHeartRate == nil
}

// Clone returns a copy that shares no pointers with m.
func (m MetricsSnapshot) Clone() MetricsSnapshot {
	c := m
	c.HeartRate = cloneFloat(m.HeartRate)
	c.CaloriesBurned = cloneFloat(m.CaloriesBurned)
	c.ActiveEnergy = cloneFloat(m.ActiveEnergy)
	c.MinHeartRate = cloneFloat(m.MinHeartRate)
	c.AverageHeartRate = cloneFloat(m.AverageHeartRate)
	c.MaxHeartRate = cloneFloat(m.MaxHeartRate)
	if m.Duration != nil {
		d := *m.Duration
		c.Duration = &d
	}
	return c
}

// Float returns a pointer to v, for populating optional fields.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
