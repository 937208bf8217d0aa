// ABOUTME: CLI commands for the live session lifecycle.
// ABOUTME: Supports begin, start, pause, resume, complete, cancel, and status subcommands.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/fitcore/internal/history"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/session"
	"github.com/spf13/cobra"
)

var (
	startTemplate string
)

var sessionCmd = &cobra.Command{
	Use:     "session",
	Aliases: []string{"sess"},
	Short:   "Control the live workout session",
	Long: `Control the live workout session.

LIFECYCLE:

  idle -> begin -> (setup) -> start -> active <-> paused -> complete

  begin     Start the clock while you set up exercises
  start     Go live with the setup draft or a template
  pause     Freeze the clock (rest countdown is held)
  resume    Continue the clock
  complete  Finish the workout and archive it
  cancel    Discard the setup draft, or dismiss a completed summary

The elapsed time counts from 'begin', so setup time is part of the session.`,
}

var sessionBeginCmd = &cobra.Command{
	Use:   "begin",
	Short: "Start the session clock and enter setup",
	RunE: func(cmd *cobra.Command, args []string) error {
		return lifecycle(cmd, "begin", (*session.Controller).BeginSetup)
	},
}

var sessionStartCmd = &cobra.Command{
	Use:     "start [name]",
	Aliases: []string{"commit"},
	Short:   "Start the live workout",
	Long: `Start the live workout from the setup draft, or from a template.

Examples:
  fitcore session start "Push day"
  fitcore session start --template legs`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if startTemplate == "" && len(args) == 0 {
			return fmt.Errorf("give a workout name or --template")
		}
		d, err := startDevice(cmd.Context())
		if err != nil {
			return err
		}

		var ok bool
		var lookupErr error
		var snap session.Snapshot
		if err := d.Do(cmd.Context(), func() {
			c := d.Session
			if startTemplate != "" {
				var t models.WorkoutTemplate
				t, lookupErr = d.Templates.Get(startTemplate)
				if lookupErr != nil {
					return
				}
				ok = c.StartFromTemplate(t)
			} else {
				if st := c.State(); st == session.Idle || st == session.Completed {
					c.BeginSetup()
				}
				ok = c.CommitWorkout(args[0], nil)
			}
			snap = c.Snapshot()
		}); err != nil {
			return err
		}
		if lookupErr != nil {
			return fmt.Errorf("template not found: %w", lookupErr)
		}
		if !ok {
			return fmt.Errorf("cannot start a workout while %s", snap.State)
		}

		color.Green("✓ Started %s", snap.Workout.Name)
		printSnapshot(snap)
		return nil
	},
}

var sessionPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the session clock",
	RunE: func(cmd *cobra.Command, args []string) error {
		return lifecycle(cmd, "pause", (*session.Controller).Pause)
	},
}

var sessionResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume a paused session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return lifecycle(cmd, "resume", (*session.Controller).Resume)
	},
}

var sessionCompleteCmd = &cobra.Command{
	Use:     "complete",
	Aliases: []string{"finish", "done"},
	Short:   "Finish the workout and archive it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return lifecycle(cmd, "complete", (*session.Controller).Complete)
	},
}

var sessionCancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Discard the setup draft or dismiss a completed summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		return lifecycle(cmd, "cancel", (*session.Controller).Cancel)
	},
}

var sessionStatusCmd = &cobra.Command{
	Use:     "status",
	Aliases: []string{"st"},
	Short:   "Show the session state and workout",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := startDevice(cmd.Context())
		if err != nil {
			return err
		}
		var snap session.Snapshot
		if err := d.Do(cmd.Context(), func() { snap = d.Session.Snapshot() }); err != nil {
			return err
		}
		printSnapshot(snap)
		return nil
	},
}

// lifecycle runs a no-argument transition and reports the new state.
func lifecycle(cmd *cobra.Command, name string, op func(*session.Controller) bool) error {
	d, err := startDevice(cmd.Context())
	if err != nil {
		return err
	}
	var ok bool
	var before, after session.State
	var elapsed string
	if err := d.Do(cmd.Context(), func() {
		before = d.Session.State()
		ok = op(d.Session)
		after = d.Session.State()
		elapsed = session.FormatElapsed(d.Session.Elapsed())
	}); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cannot %s while %s", name, before)
	}
	color.Green("✓ Session %s", after)
	if after.Running() {
		fmt.Printf("  Elapsed: %s\n", elapsed)
	}
	return nil
}

func printSnapshot(snap session.Snapshot) {
	faint := color.New(color.Faint)
	fmt.Printf("State: %s\n", snap.State)
	if snap.State.Running() {
		fmt.Printf("Elapsed: %s\n", session.FormatElapsed(snap.Elapsed))
	}

	switch {
	case snap.Workout != nil:
		w := snap.Workout
		fmt.Printf("Workout: %s %s\n", w.Name, faint.Sprint(w.ID.String()[:8]))
		fmt.Printf("Progress: %d/%d sets\n", w.CompletedSets(), w.TotalSets())
		printExercises(w.Exercises)
	case len(snap.Draft) > 0:
		fmt.Println("Draft:")
		printExercises(snap.Draft)
	case snap.LastCompleted != nil:
		w := snap.LastCompleted
		fmt.Printf("Last workout: %s (%s)\n", w.Name, session.FormatElapsed(w.Duration()))
	}

	if snap.Metrics != nil {
		printMetrics(*snap.Metrics)
	}
}

func printExercises(exercises []models.Exercise) {
	faint := color.New(color.Faint)
	for i, e := range exercises {
		fmt.Printf("\n  %d. %s %s\n", i+1, e.Name, faint.Sprintf("(%s, rest %s)", e.Category, session.FormatElapsed(e.RestTime)))
		for j, s := range e.Sets {
			fmt.Printf("     %d  %s\n", j+1, history.FormatSet(s))
		}
	}
}

func printMetrics(m models.MetricsSnapshot) {
	fmt.Println("Metrics:")
	if m.HeartRate != nil {
		fmt.Printf("  Heart rate: %.0f bpm\n", *m.HeartRate)
	}
	if m.CaloriesBurned != nil {
		fmt.Printf("  Calories: %.0f kcal\n", *m.CaloriesBurned)
	}
	if m.ActiveEnergy != nil {
		fmt.Printf("  Active energy: %.0f kcal\n", *m.ActiveEnergy)
	}
	if m.Duration != nil {
		fmt.Printf("  Duration: %s\n", session.FormatElapsed(*m.Duration))
	}
}

func init() {
	sessionStartCmd.Flags().StringVarP(&startTemplate, "template", "t", "", "start from a template (ID, prefix or position)")

	sessionCmd.AddCommand(sessionBeginCmd)
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionPauseCmd)
	sessionCmd.AddCommand(sessionResumeCmd)
	sessionCmd.AddCommand(sessionCompleteCmd)
	sessionCmd.AddCommand(sessionCancelCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	rootCmd.AddCommand(sessionCmd)
}
