// ABOUTME: CLI command that keeps the device online.
// ABOUTME: Services clock ticks, rest timers and both sync channels until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/fitcore/internal/resttimer"
	"github.com/harperreed/fitcore/internal/session"
	fitsync "github.com/harperreed/fitcore/internal/sync"
	"github.com/spf13/cobra"
)

var runQuiet bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Keep the device online",
	Long: `Keep the device online until interrupted.

While running, fitcore:

  - ticks the session clock and rest countdowns
  - listens on the direct channel for the peer's messages
  - drains the queued channel every queue_poll_interval
  - asks the peer for its session and templates on start

Session changes, rest completions and peer messages are printed as they
happen. Use another terminal (or the MCP server) to drive the session.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !runQuiet {
			d.Session.Events().Subscribe(func(ev session.Event) {
				if line := eventLine(ev); line != "" {
					fmt.Println(line)
				}
			})
			d.Rest.Completions().Subscribe(func(c resttimer.Completion) {
				color.Cyan("rest %s after %s", c.Outcome, session.FormatElapsed(c.Total))
			})
			d.Bridge.Inbound().Subscribe(func(m fitsync.Message) {
				fmt.Println(color.New(color.Faint).Sprintf("peer %s", m.Type))
			})
		}

		color.Green("✓ %s online (Ctrl-C to stop)", cfg.DeviceID)
		return d.Run(ctx)
	},
}

// eventLine renders a session event, or "" for events not worth printing.
func eventLine(ev session.Event) string {
	name := ""
	if ev.Workout != nil {
		name = ev.Workout.Name
	}
	switch ev.Kind {
	case session.EventState:
		if ev.State.Running() {
			return fmt.Sprintf("session %s %s %s", ev.State, session.FormatElapsed(ev.Elapsed), name)
		}
		return fmt.Sprintf("session %s", ev.State)
	case session.EventCompleted:
		return color.GreenString("✓ completed %s", name)
	case session.EventRemote:
		return fmt.Sprintf("session updated by peer: %s %s", ev.State, name)
	case session.EventMetrics:
		return "metrics captured"
	case session.EventTick:
		// once a minute is enough on a terminal
		if ev.Elapsed > 0 && ev.Elapsed%time.Minute < time.Second {
			return fmt.Sprintf("%s %s", session.FormatElapsed(ev.Elapsed), ev.State)
		}
	}
	return ""
}

func init() {
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "do not print events")
	rootCmd.AddCommand(runCmd)
}
