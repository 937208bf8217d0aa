// ABOUTME: Elapsed-time accounting for a session across pause and resume.
// ABOUTME: Pure value type; every operation takes the instant it happens at.
package session

import (
	"fmt"
	"time"
)

// Accounting is the session clock state. Elapsed time is derived from
// absolute instants, so repeated or coalesced recomputation never drifts.
type Accounting struct {
	Start            time.Time     `json:"start"`
	PauseStart       *time.Time    `json:"pause_start,omitempty"`
	AccumulatedPause time.Duration `json:"accumulated_pause"`
}

// Started reports whether Start has been called.
func (a *Accounting) Started() bool {
	return !a.Start.IsZero()
}

// Paused reports whether the clock is frozen.
func (a *Accounting) Paused() bool {
	return a.PauseStart != nil
}

// Begin sets the start instant and clears all pause bookkeeping.
func (a *Accounting) Begin(now time.Time) {
	a.Start = now
	a.PauseStart = nil
	a.AccumulatedPause = 0
}

// Pause freezes the clock at now. It reports false if already paused.
func (a *Accounting) Pause(now time.Time) bool {
	if a.PauseStart != nil {
		return false
	}
	a.PauseStart = &now
	return true
}

// Resume unfreezes the clock, adding the paused span to the accumulated
// pause. It reports false if not paused. A resume instant earlier than the
// pause instant adds nothing.
func (a *Accounting) Resume(now time.Time) bool {
	if a.PauseStart == nil {
		return false
	}
	if d := now.Sub(*a.PauseStart); d > 0 {
		a.AccumulatedPause += d
	}
	a.PauseStart = nil
	return true
}

// Elapsed returns active time as of now, never negative.
func (a *Accounting) Elapsed(now time.Time) time.Duration {
	if !a.Started() {
		return 0
	}
	end := now
	if a.PauseStart != nil && a.PauseStart.Before(now) {
		end = *a.PauseStart
	}
	d := end.Sub(a.Start) - a.AccumulatedPause
	if d < 0 {
		return 0
	}
	return d
}

// Reset clears the clock.
func (a *Accounting) Reset() {
	*a = Accounting{}
}

// FormatElapsed renders a duration as mm:ss, or h:mm:ss from one hour.
func FormatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h, m, s := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
