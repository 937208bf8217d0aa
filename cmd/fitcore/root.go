// ABOUTME: Root Cobra command for fitcore CLI.
// ABOUTME: Loads config and logging in PersistentPreRunE and closes the device after each command.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/harperreed/fitcore/internal/app"
	"github.com/harperreed/fitcore/internal/config"
	"github.com/harperreed/fitcore/internal/health"
	"github.com/harperreed/fitcore/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	logger  *logging.Logger
	device  *app.Device
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fitcore",
	Short: "Workout session tracker with phone and watch sync",
	Long: `Fitcore tracks a live strength workout: the session clock, sets, rest
countdowns and history, and mirrors the session to a paired device.

QUICK START:

  $ fitcore session begin                      # Start the clock while you set up
  $ fitcore exercise add "Bench" --sets 3 --reps 8 --weight 60
  $ fitcore session start "Push day"           # Go live with the draft
  $ fitcore set done 1 1                       # Complete exercise 1, set 1
  $ fitcore session pause                      # Pause the clock
  $ fitcore session complete                   # Archive the workout

TEMPLATES AND HISTORY:

  $ fitcore template import templates.json     # Load workout templates
  $ fitcore session start --template legs      # Start from a template
  $ fitcore history list                       # Recent workouts
  $ fitcore stats                              # Totals and weekly goal

PAIRED DEVICE:

  Each device has an ID (fitcore config init). Set peer_id to the other
  device's ID, then enable a direct channel (redis_addr) and/or the queued
  channel over Charm KV (charm_queue).

  $ fitcore run                                # Stay online: ticks, sync, rest timers
  $ fitcore sync status                        # Channels and traffic

MCP INTEGRATION:

  Run 'fitcore mcp' to serve the session to MCP-compatible assistants.

CONFIGURATION:

  Config lives at ~/.config/fitcore/config.json. Every key can be overridden
  with a FITCORE_<KEY> environment variable.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip setup for commands that don't need it
		if cmd.Name() == "help" || cmd.Name() == "install-skill" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger, err = logging.New(logging.Options{
			File:    cfg.GetLogFile(),
			Level:   cfg.LogLevel,
			Verbose: verbose,
		})
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "also write logs to stderr")
}

// openDevice builds the device without starting it.
func openDevice() (*app.Device, error) {
	if device != nil {
		return device, nil
	}
	if cfg.EnsureDeviceID() {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("failed to save device id: %w", err)
		}
	}
	notifier := health.Multi{health.NewConsole(os.Stdout), health.LogNotifier{Logger: logger.Logger}}
	d, err := app.Open(cfg, logger.Logger, notifier)
	if err != nil {
		return nil, err
	}
	device = d
	return d, nil
}

// startDevice opens the device and restores persisted state for a one-shot
// command.
func startDevice(ctx context.Context) (*app.Device, error) {
	d, err := openDevice()
	if err != nil {
		return nil, err
	}
	if err := d.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start: %w", err)
	}
	return d, nil
}

// closeAll releases the device and the log file.
func closeAll() error {
	var errs []error
	if device != nil {
		errs = append(errs, device.Close())
		device = nil
	}
	if logger != nil {
		errs = append(errs, logger.Close())
		logger = nil
	}
	return errors.Join(errs...)
}
