// ABOUTME: CLI commands for exercises and sets in the live workout or setup draft.
// ABOUTME: Exercises and sets are addressed by 1-based position or ID prefix.
package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/fitcore/internal/app"
	"github.com/harperreed/fitcore/internal/catalog"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/harperreed/fitcore/internal/resttimer"
	"github.com/harperreed/fitcore/internal/session"
	"github.com/spf13/cobra"
)

var (
	exerciseCategory string
	exerciseSets     int
	exerciseReps     int
	exerciseWeight   float64
	exerciseRest     time.Duration

	setWeight     float64
	setBodyweight bool
	setReps       int
	setRest       time.Duration
	setNotes      string
)

var exerciseCmd = &cobra.Command{
	Use:     "exercise",
	Aliases: []string{"ex"},
	Short:   "Manage exercises in the current workout",
	Long: `Add or remove exercises in the live workout, or in the setup draft after
'fitcore session begin'.

Examples:
  fitcore exercise add "Bench press" --sets 3 --reps 8 --weight 60 --rest 2m
  fitcore exercise add "Push-ups" --sets 2 --reps 15
  fitcore exercise catalog legs
  fitcore exercise remove 2

Names found in the exercise catalog take its spelling and category unless
--category is given.`,
}

var exerciseCatalogCmd = &cobra.Command{
	Use:     "catalog [query]",
	Aliases: []string{"browse"},
	Short:   "List known exercises, optionally filtered by name or category",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := ""
		if len(args) > 0 {
			query = args[0]
		}
		var items []catalog.Item
		if err := onDevice(cmd, func(d *app.Device) error {
			items = d.Catalog.Search(query)
			return nil
		}); err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No exercises found.")
			return nil
		}
		faint := color.New(color.Faint)
		for _, it := range items {
			fmt.Printf("%s %s\n", padRight(it.Name, 28), faint.Sprint(it.Category))
		}
		return nil
	},
}

var exerciseAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add an exercise",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if exerciseSets < 0 || exerciseSets > session.MaxSetsPerExercise {
			return fmt.Errorf("sets must be between 0 and %d", session.MaxSetsPerExercise)
		}
		var weight *float64
		if exerciseWeight > 0 {
			weight = models.Float(exerciseWeight)
		}

		var (
			ex models.Exercise
			ok bool
		)
		err := onDevice(cmd, func(d *app.Device) error {
			ex = d.Catalog.Exercise(args[0], exerciseSets, exerciseReps, weight)
			if exerciseCategory != "" {
				ex.Category = exerciseCategory
			}
			if exerciseRest > 0 {
				ex.RestTime = resttimer.ClampRest(exerciseRest)
				for i := range ex.Sets {
					ex.Sets[i].RestTime = ex.RestTime
				}
			}
			ok = d.Session.AddExercise(ex)
			return nil
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no workout or draft to add to (limit %d exercises)", session.MaxExercisesPerWorkout)
		}
		color.Green("✓ Added %s", ex.Name)
		fmt.Printf("  ID: %s\n", ex.ID.String()[:8])
		fmt.Printf("  Sets: %d\n", len(ex.Sets))
		return nil
	},
}

var exerciseRemoveCmd = &cobra.Command{
	Use:     "remove <exercise>",
	Aliases: []string{"rm"},
	Short:   "Remove an exercise and its sets",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := onDevice(cmd, func(d *app.Device) error {
			id, err := d.Session.ResolveExercise(args[0])
			if err != nil {
				return err
			}
			if !d.Session.RemoveExercise(id) {
				return fmt.Errorf("failed to remove exercise %s", args[0])
			}
			return nil
		})
		if err != nil {
			return err
		}
		color.Green("✓ Removed exercise %s", args[0])
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Track sets",
	Long: `Add, complete, change or remove sets.

Completing a set starts its rest countdown when rest timers are enabled.
Completing a set again refreshes its completion time.

Examples:
  fitcore set done 1 2              # exercise 1, set 2
  fitcore set add 1 10 --weight 62.5
  fitcore set update 1 2 --reps 6 --weight 65
  fitcore set remove 1 3`,
}

var setAddCmd = &cobra.Command{
	Use:   "add <exercise> <reps>",
	Short: "Append a set to an exercise",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		reps, err := strconv.Atoi(args[1])
		if err != nil || reps <= 0 {
			return fmt.Errorf("invalid reps: %s", args[1])
		}
		var weight *float64
		if setWeight > 0 {
			weight = models.Float(setWeight)
		}
		err = onDevice(cmd, func(d *app.Device) error {
			exID, err := d.Session.ResolveExercise(args[0])
			if err != nil {
				return err
			}
			if _, ok := d.Session.AddSet(exID, weight, reps); !ok {
				return fmt.Errorf("cannot add set: limit is %d per exercise", session.MaxSetsPerExercise)
			}
			return nil
		})
		if err != nil {
			return err
		}
		color.Green("✓ Added set of %d reps", reps)
		return nil
	},
}

var setDoneCmd = &cobra.Command{
	Use:     "done <exercise> <set>",
	Aliases: []string{"complete"},
	Short:   "Mark a set completed",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rest resttimer.Status
		err := onDevice(cmd, func(d *app.Device) error {
			exID, setID, err := d.Session.ResolveSet(args[0], args[1])
			if err != nil {
				return err
			}
			if !d.Session.CompleteSet(exID, setID) {
				return fmt.Errorf("failed to complete set")
			}
			rest = d.Rest.Status()
			return nil
		})
		if err != nil {
			return err
		}
		color.Green("✓ Set completed")
		if rest.State == resttimer.Running {
			fmt.Printf("  Rest: %s\n", session.FormatElapsed(rest.Remaining))
		}
		return nil
	},
}

var setUpdateCmd = &cobra.Command{
	Use:   "update <exercise> <set>",
	Short: "Change a set's weight, reps, rest or notes",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var u session.SetUpdate
		flags := cmd.Flags()
		if flags.Changed("weight") {
			u.Weight = models.Float(setWeight)
		}
		u.ClearWeight = setBodyweight
		if flags.Changed("reps") {
			if setReps <= 0 {
				return fmt.Errorf("reps must be positive")
			}
			u.Reps = &setReps
		}
		if flags.Changed("rest") {
			d := resttimer.ClampRest(setRest)
			u.RestTime = &d
		}
		if flags.Changed("notes") {
			u.Notes = &setNotes
		}

		err := onDevice(cmd, func(d *app.Device) error {
			exID, setID, err := d.Session.ResolveSet(args[0], args[1])
			if err != nil {
				return err
			}
			if !d.Session.UpdateSet(exID, setID, u) {
				return fmt.Errorf("failed to update set")
			}
			return nil
		})
		if err != nil {
			return err
		}
		color.Green("✓ Set updated")
		return nil
	},
}

var setRemoveCmd = &cobra.Command{
	Use:     "remove <exercise> <set>",
	Aliases: []string{"rm"},
	Short:   "Remove a set",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		err := onDevice(cmd, func(d *app.Device) error {
			exID, setID, err := d.Session.ResolveSet(args[0], args[1])
			if err != nil {
				return err
			}
			if !d.Session.RemoveSet(exID, setID) {
				return fmt.Errorf("failed to remove set")
			}
			return nil
		})
		if err != nil {
			return err
		}
		color.Green("✓ Set removed")
		return nil
	},
}

// onDevice starts the device and runs fn on its owner loop.
func onDevice(cmd *cobra.Command, fn func(*app.Device) error) error {
	d, err := startDevice(cmd.Context())
	if err != nil {
		return err
	}
	var fnErr error
	if err := d.Do(cmd.Context(), func() { fnErr = fn(d) }); err != nil {
		return err
	}
	return fnErr
}

func init() {
	exerciseAddCmd.Flags().StringVarP(&exerciseCategory, "category", "c", "", "exercise category (default: from the catalog, else strength)")
	exerciseAddCmd.Flags().IntVarP(&exerciseSets, "sets", "s", 3, "number of sets")
	exerciseAddCmd.Flags().IntVarP(&exerciseReps, "reps", "r", 10, "reps per set")
	exerciseAddCmd.Flags().Float64VarP(&exerciseWeight, "weight", "w", 0, "weight per set (omit for bodyweight)")
	exerciseAddCmd.Flags().DurationVar(&exerciseRest, "rest", models.DefaultRestTime, "rest after each set")

	setAddCmd.Flags().Float64VarP(&setWeight, "weight", "w", 0, "weight (omit for bodyweight)")
	setUpdateCmd.Flags().Float64VarP(&setWeight, "weight", "w", 0, "new weight")
	setUpdateCmd.Flags().BoolVar(&setBodyweight, "bodyweight", false, "clear the weight")
	setUpdateCmd.Flags().IntVarP(&setReps, "reps", "r", 0, "new reps")
	setUpdateCmd.Flags().DurationVar(&setRest, "rest", 0, "new rest time")
	setUpdateCmd.Flags().StringVarP(&setNotes, "notes", "n", "", "notes")

	exerciseCmd.AddCommand(exerciseAddCmd)
	exerciseCmd.AddCommand(exerciseRemoveCmd)
	exerciseCmd.AddCommand(exerciseCatalogCmd)
	setCmd.AddCommand(setAddCmd)
	setCmd.AddCommand(setDoneCmd)
	setCmd.AddCommand(setUpdateCmd)
	setCmd.AddCommand(setRemoveCmd)
	rootCmd.AddCommand(exerciseCmd)
	rootCmd.AddCommand(setCmd)
}
