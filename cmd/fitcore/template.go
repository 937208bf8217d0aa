// ABOUTME: CLI commands for workout templates.
// ABOUTME: Supports list, show, import, save, and delete subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/harperreed/fitcore/internal/app"
	"github.com/harperreed/fitcore/internal/models"
	"github.com/spf13/cobra"
)

var (
	templateCategory   string
	templateDifficulty string
)

var templateCmd = &cobra.Command{
	Use:     "template",
	Aliases: []string{"tpl"},
	Short:   "Manage workout templates",
	Long: `Manage reusable workout templates.

Templates are shared with the paired device: any local change pushes the
whole list, and the peer replaces its copy.

COMMANDS:

  list      List templates
  show      Show a template's exercises
  import    Import templates from a JSON or YAML file
  save      Save the current or last workout as a template
  delete    Delete a template`,
}

var templateListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		var list []models.WorkoutTemplate
		if err := onDevice(cmd, func(d *app.Device) error {
			list = d.Templates.List()
			return nil
		}); err != nil {
			return err
		}

		if len(list) == 0 {
			fmt.Println("No templates found.")
			return nil
		}

		faint := color.New(color.Faint)
		for i, t := range list {
			fmt.Printf("%2d %s %s %s %s\n",
				i+1,
				faint.Sprint(t.ID.String()[:8]),
				padRight(truncate(t.Name, 24), 24),
				padRight(string(t.Difficulty), 12),
				faint.Sprintf("%d exercises, %s", len(t.Exercises), t.Origin))
		}
		return nil
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show <template>",
	Short: "Show template details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var t models.WorkoutTemplate
		if err := onDevice(cmd, func(d *app.Device) error {
			var err error
			t, err = d.Templates.Get(args[0])
			return err
		}); err != nil {
			return fmt.Errorf("failed to get template: %w", err)
		}

		fmt.Printf("Template: %s\n", t.ID.String()[:8])
		fmt.Printf("Name: %s\n", t.Name)
		fmt.Printf("Category: %s\n", t.Category)
		fmt.Printf("Difficulty: %s\n", t.Difficulty)
		if t.EstimatedDuration > 0 {
			fmt.Printf("Estimated: %s\n", t.EstimatedDuration)
		}
		if t.Description != nil {
			fmt.Printf("Description: %s\n", *t.Description)
		}
		printExercises(t.Exercises)
		return nil
	},
}

var templateImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import templates from JSON or YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read file: %w", err)
		}

		var n int
		if err := onDevice(cmd, func(d *app.Device) error {
			n, err = d.Templates.Import(data)
			return err
		}); err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		color.Green("✓ Imported %d templates from %s", n, args[0])
		return nil
	},
}

var templateSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Save the current or most recent workout as a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		difficulty, err := models.ParseDifficulty(templateDifficulty)
		if err != nil {
			return err
		}

		var t models.WorkoutTemplate
		if err := onDevice(cmd, func(d *app.Device) error {
			snap := d.Session.Snapshot()
			source := snap.Workout
			if source == nil {
				source = snap.LastCompleted
			}
			if source == nil {
				if recent := d.Archive.List(1); len(recent) > 0 {
					source = &recent[0]
				}
			}
			if source == nil {
				return fmt.Errorf("no current or completed workout to save")
			}
			t = models.NewWorkoutTemplate(args[0], templateCategory, difficulty,
				source.Duration(), models.FreshExercises(source.Exercises))
			return d.Templates.Add(t)
		}); err != nil {
			return err
		}

		color.Green("✓ Saved template %s", t.Name)
		fmt.Printf("  ID: %s\n", t.ID.String()[:8])
		return nil
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:     "delete <template>",
	Aliases: []string{"rm"},
	Short:   "Delete a template",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := onDevice(cmd, func(d *app.Device) error {
			return d.Templates.Delete(args[0])
		}); err != nil {
			return fmt.Errorf("failed to delete template: %w", err)
		}
		color.Green("✓ Deleted template %s", args[0])
		return nil
	},
}

func init() {
	templateSaveCmd.Flags().StringVarP(&templateCategory, "category", "c", "strength", "template category")
	templateSaveCmd.Flags().StringVarP(&templateDifficulty, "difficulty", "d", string(models.DifficultyIntermediate), "beginner, intermediate or advanced")

	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateShowCmd)
	templateCmd.AddCommand(templateImportCmd)
	templateCmd.AddCommand(templateSaveCmd)
	templateCmd.AddCommand(templateDeleteCmd)
	rootCmd.AddCommand(templateCmd)
}
