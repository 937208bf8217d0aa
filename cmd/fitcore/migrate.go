// ABOUTME: CLI command for copying session data between storage backends.
// ABOUTME: Moves every persisted key, e.g. from badger to sqlite or charm.
package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/fitcore/internal/charm"
	"github.com/harperreed/fitcore/internal/storage"
	"github.com/spf13/cobra"
)

var (
	migrateDryRun bool
	migrateFrom   string
	migrateTo     string
	migrateForce  bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy data between storage backends",
	Long: `Copy every persisted key from one storage backend to another.

BACKENDS:

  badger   local Badger directory (default)
  sqlite   local SQLite file
  charm    Charm KV, namespaced by device ID

USAGE:

  fitcore migrate --from badger --to sqlite --dry-run   # Preview
  fitcore migrate --from badger --to sqlite             # Copy
  fitcore config set backend sqlite                     # Switch

Keys missing from the source are skipped. Existing keys in the
destination are overwritten.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateFrom == migrateTo {
			return fmt.Errorf("--from and --to must differ")
		}
		if migrateDryRun {
			color.Yellow("Dry run mode - no changes will be made")
			fmt.Println()
		}

		var cc *charm.Client
		if migrateFrom == "charm" || migrateTo == "charm" {
			cfg.EnsureDeviceID()
			var err error
			cc, err = charm.Open(cfg.CharmDB)
			if err != nil {
				return fmt.Errorf("failed to open charm: %w", err)
			}
			defer func() { _ = cc.Close() }()
		}

		src, err := openBackend(migrateFrom, cc)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", migrateFrom, err)
		}
		defer func() { _ = src.Close() }()

		dst, err := openBackend(migrateTo, cc)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", migrateTo, err)
		}
		defer func() { _ = dst.Close() }()

		if !migrateForce && !migrateDryRun {
			hasData, err := storage.HasData(dst)
			if err != nil {
				return fmt.Errorf("failed to inspect %s: %w", migrateTo, err)
			}
			if hasData {
				return fmt.Errorf("%s storage already has data; use --force to overwrite", migrateTo)
			}
		}

		summary, err := storage.MigrateData(src, dst, migrateDryRun)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}

		for _, key := range summary.Copied {
			fmt.Printf("  %s\n", key)
		}
		verb := "Copied"
		if migrateDryRun {
			verb = "Would copy"
		}
		color.Green("✓ %s %d keys (%d bytes) from %s to %s", verb, len(summary.Copied), summary.Bytes, migrateFrom, migrateTo)
		if len(summary.Missing) > 0 {
			fmt.Printf("  Skipped %d keys not present in %s\n", len(summary.Missing), migrateFrom)
		}
		return nil
	},
}

func openBackend(name string, cc *charm.Client) (storage.Gateway, error) {
	c := *cfg
	c.Backend = name
	return c.OpenStorage(cc)
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDryRun, "dry-run", false, "preview migration without making changes")
	migrateCmd.Flags().StringVar(&migrateFrom, "from", "badger", "source backend")
	migrateCmd.Flags().StringVar(&migrateTo, "to", "sqlite", "destination backend")
	migrateCmd.Flags().BoolVar(&migrateForce, "force", false, "overwrite data already in the destination")
	rootCmd.AddCommand(migrateCmd)
}
