// ABOUTME: CLI commands for archived workouts and stats.
// ABOUTME: Supports list, show, delete, prune, export and import subcommands plus the stats command.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/fitcore/internal/app"
	"github.com/harperreed/fitcore/internal/history"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/session"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyBefore string
	exportOutput  string
	exportSince   string
	importReplace bool
)

var historyCmd = &cobra.Command{
	Use:     "history",
	Aliases: []string{"h"},
	Short:   "Browse archived workouts",
	Long: `Browse archived workouts.

Completed sessions are archived on this device and on the paired device.

COMMANDS:

  list      List recent workouts
  show      Show a workout with its sets and metrics
  delete    Delete a workout
  prune     Delete workouts started before a date
  export    Export history as json, yaml or markdown
  import    Restore workouts from a json export`,
}

var historyListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List recent workouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		var workouts []models.Workout
		if err := onDevice(cmd, func(d *app.Device) error {
			workouts = d.Archive.List(historyLimit)
			return nil
		}); err != nil {
			return err
		}

		if len(workouts) == 0 {
			fmt.Println("No workouts found.")
			return nil
		}

		faint := color.New(color.Faint)
		for _, w := range workouts {
			fmt.Printf("%s %s %s %s %s\n",
				faint.Sprint(w.ID.String()[:8]),
				faint.Sprint(w.StartTime.Local().Format("2006-01-02 15:04")),
				padRight(truncate(w.Name, 24), 24),
				padRight(session.FormatElapsed(w.Duration()), 8),
				faint.Sprintf("%d/%d sets", w.CompletedSets(), w.TotalSets()))
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show workout details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var w models.Workout
		if err := onDevice(cmd, func(d *app.Device) error {
			var err error
			w, err = d.Archive.Get(args[0])
			return err
		}); err != nil {
			return fmt.Errorf("failed to get workout: %w", err)
		}

		fmt.Printf("Workout: %s\n", w.ID.String()[:8])
		fmt.Printf("Name: %s\n", w.Name)
		fmt.Printf("Started: %s\n", w.StartTime.Local().Format("2006-01-02 15:04"))
		fmt.Printf("Duration: %s\n", session.FormatElapsed(w.Duration()))
		if w.Notes != nil {
			fmt.Printf("Notes: %s\n", *w.Notes)
		}
		printExercises(w.Exercises)
		if w.Metrics != nil {
			fmt.Println()
			printMetrics(*w.Metrics)
		}
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete a workout",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := onDevice(cmd, func(d *app.Device) error {
			return d.Archive.Delete(args[0], d.Clock.Now())
		}); err != nil {
			return fmt.Errorf("failed to delete workout: %w", err)
		}
		color.Green("✓ Deleted workout %s", args[0])
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete workouts started before a date",
	Long: `Delete workouts started before a date.

Example:
  fitcore history prune --before 2024-01-01`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyBefore == "" {
			return fmt.Errorf("--before is required")
		}
		cutoff, err := parseTime(historyBefore)
		if err != nil {
			return fmt.Errorf("invalid date: %s (use YYYY-MM-DD)", historyBefore)
		}

		var n int
		if err := onDevice(cmd, func(d *app.Device) error {
			n = d.Archive.Prune(cutoff, d.Clock.Now())
			return nil
		}); err != nil {
			return err
		}
		color.Green("✓ Pruned %d workouts", n)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export [format]",
	Short: "Export workout history",
	Long: `Export workout history.

FORMATS:

  json       Full-fidelity JSON (default)
  yaml       Readable YAML
  markdown   Markdown report

EXAMPLES:

  fitcore history export                       # JSON to stdout
  fitcore history export yaml -o history.yaml  # YAML to file
  fitcore history export markdown --since 2025-01-01`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{history.FormatJSON, history.FormatYAML, history.FormatMarkdown},
	RunE: func(cmd *cobra.Command, args []string) error {
		format := history.FormatJSON
		if len(args) > 0 {
			format = args[0]
		}

		var since *time.Time
		if exportSince != "" {
			t, err := parseTime(exportSince)
			if err != nil {
				return fmt.Errorf("invalid date format: %s (use YYYY-MM-DD)", exportSince)
			}
			since = &t
		}

		var data []byte
		if err := onDevice(cmd, func(d *app.Device) error {
			var err error
			data, err = d.Archive.Export(format, since, d.Clock.Now())
			return err
		}); err != nil {
			return fmt.Errorf("export failed: %w", err)
		}

		if exportOutput != "" {
			if err := os.WriteFile(exportOutput, data, 0600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}
			color.Green("✓ Exported to %s", exportOutput)
		} else {
			fmt.Println(string(data))
		}
		return nil
	},
}

var historyImportCmd = &cobra.Command{
	Use:     "import <file>",
	Aliases: []string{"restore"},
	Short:   "Restore workouts from a JSON export",
	Long: `Restore workouts from a JSON export.

A JSON export is the backup format. Workouts already archived are replaced
by the copy in the file; others are added. Stats are recomputed.

EXAMPLES:

  fitcore history export -o backup.json
  fitcore history import backup.json
  fitcore history import backup.json --replace   # discard the current archive first`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read backup: %w", err)
		}
		data, err := history.DecodeBackup(raw)
		if err != nil {
			return err
		}

		var res history.RestoreResult
		if err := onDevice(cmd, func(d *app.Device) error {
			res = d.Archive.Restore(data, importReplace, d.Clock.Now())
			return nil
		}); err != nil {
			return err
		}
		color.Green("✓ Restored %d workouts (%d added, %d replaced)", res.Added+res.Replaced, res.Added, res.Replaced)
		if res.Dropped > 0 {
			color.Yellow("Dropped %d oldest workouts over the %d limit", res.Dropped, history.MaxWorkouts)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show workout totals and weekly goal progress",
	RunE: func(cmd *cobra.Command, args []string) error {
		var stats models.WorkoutStats
		if err := onDevice(cmd, func(d *app.Device) error {
			stats = d.Archive.StatsAt(d.Clock.Now())
			return nil
		}); err != nil {
			return err
		}

		fmt.Printf("Workouts: %d\n", stats.TotalWorkouts)
		fmt.Printf("Total time: %s\n", session.FormatElapsed(stats.TotalDuration))
		fmt.Printf("Average: %s\n", session.FormatElapsed(stats.AverageDuration))
		fmt.Printf("Longest: %s\n", session.FormatElapsed(stats.LongestWorkout))
		if stats.TotalCalories > 0 {
			fmt.Printf("Calories: %.0f kcal\n", stats.TotalCalories)
		}
		if stats.MostUsedExercise != "" {
			fmt.Printf("Favourite exercise: %s\n", stats.MostUsedExercise)
		}
		if stats.LastWorkoutAt != nil {
			fmt.Printf("Last workout: %s\n", stats.LastWorkoutAt.Local().Format("2006-01-02 15:04"))
		}

		progress := fmt.Sprintf("%d/%d this week", stats.WeeklyProgress, stats.WeeklyGoal)
		if stats.WeeklyProgress >= stats.WeeklyGoal {
			color.Green("✓ Weekly goal: %s", progress)
		} else {
			color.Yellow("Weekly goal: %s", progress)
		}
		return nil
	},
}

func init() {
	historyListCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "max workouts to show")
	historyPruneCmd.Flags().StringVar(&historyBefore, "before", "", "delete workouts started before this date (YYYY-MM-DD)")
	historyExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default: stdout)")
	historyExportCmd.Flags().StringVar(&exportSince, "since", "", "only include workouts since date (YYYY-MM-DD)")
	historyImportCmd.Flags().BoolVar(&importReplace, "replace", false, "clear the archive before restoring")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDeleteCmd)
	historyCmd.AddCommand(historyPruneCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyImportCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
}
