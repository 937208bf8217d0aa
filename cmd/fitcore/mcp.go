// ABOUTME: CLI command for starting MCP server.
// ABOUTME: Runs the device and a stdio MCP server side by side.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/harperreed/fitcore/internal/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server",
	Long: `Start the Model Context Protocol (MCP) server for AI assistant integration.

The device stays online while the server runs, so clock ticks, rest timers
and peer sync keep working. The server communicates via stdin/stdout.

CLAUDE DESKTOP CONFIGURATION:

  {
    "mcpServers": {
      "fitcore": {
        "command": "fitcore",
        "args": ["mcp"]
      }
    }
  }

AVAILABLE TOOLS:

  session_status     Session state, workout and rest countdown
  begin_session      Start the clock and enter setup
  start_workout      Go live with exercises or the setup draft
  start_template     Go live from a template
  pause_session      Pause the clock
  resume_session     Resume the clock
  complete_session   Finish and archive the workout
  cancel_session     Discard setup or dismiss a summary
  add_exercise       Add an exercise
  add_set            Append a set
  complete_set       Complete a set and start its rest
  skip_rest          Skip the rest countdown
  reset_rest         Restart the rest countdown
  list_exercises     Search the exercise catalog
  list_templates     List templates
  list_history       List archived workouts
  get_workout        Get an archived workout
  get_stats          Totals and weekly goal
  request_sync       Ask the peer for its session

AVAILABLE RESOURCES:

  fitcore://session   Live session
  fitcore://history   Recent workouts
  fitcore://summary   Stats, templates and sync counters`,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDevice()
		if err != nil {
			return err
		}
		server, err := mcp.NewServer(d)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return d.Run(ctx) })
		g.Go(func() error {
			select {
			case <-d.Ready():
			case <-ctx.Done():
				return nil
			}
			err := server.Serve(ctx)
			// stdin closed: stop the device too
			stop()
			return err
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
