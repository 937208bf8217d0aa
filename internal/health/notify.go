// ABOUTME: Notifier implementations: colored console output and structured logs.
// ABOUTME: Recorder captures calls for tests of components that alert the user.
package health

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/fatih/color"
)

// Console prints notifications to a writer.
type Console struct {
	out io.Writer
	mu  sync.Mutex
}

// NewConsole creates a console notifier writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Notify prints a highlighted title and body.
func (c *Console) Notify(kind, title, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, "%s %s\n", color.New(color.FgGreen, color.Bold).Sprint("🔔 "+title), body)
}

// Haptic rings the terminal bell.
func (c *Console) Haptic(kind string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprint(c.out, "\a")
}

// LogNotifier records notifications in the log.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the notification.
func (l LogNotifier) Notify(kind, title, body string) {
	l.Logger.Info("notification", "kind", kind, "title", title, "body", body)
}

// Haptic logs the pattern.
func (l LogNotifier) Haptic(kind string) {
	l.Logger.Debug("haptic", "kind", kind)
}

// Multi fans calls out to several notifiers.
type Multi []Notifier

// Notify forwards to every notifier.
func (m Multi) Notify(kind, title, body string) {
	for _, n := range m {
		n.Notify(kind, title, body)
	}
}

// Haptic forwards to every notifier.
func (m Multi) Haptic(kind string) {
	for _, n := range m {
		n.Haptic(kind)
	}
}

// Recorder stores notifier calls in memory.
type Recorder struct {
	mu            sync.Mutex
	Notifications []string
	Haptics       []string
}

// Notify records kind.
func (r *Recorder) Notify(kind, title, body string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Notifications = append(r.Notifications, kind)
}

// Haptic records kind.
func (r *Recorder) Haptic(kind string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Haptics = append(r.Haptics, kind)
}

// Counts returns how many notifications and haptics were recorded.
func (r *Recorder) Counts() (notifications, haptics int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Notifications), len(r.Haptics)
}
