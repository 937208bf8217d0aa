// ABOUTME: CLI commands for viewing and editing configuration.
// ABOUTME: Supports show, set, init, and path subcommands.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/harperreed/fitcore/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and edit configuration",
	Long: `View and edit fitcore configuration.

KEYS:

  backend               badger (default), sqlite or charm
  data_dir              local storage directory (default ~/.local/share/fitcore)
  device_id             this device's ID (generated by 'config init')
  peer_id               the paired device's ID
  redis_addr            Redis address for the direct channel
  charm_queue           true to queue messages over Charm KV
  charm_db              Charm KV database name
  rest_timers           start a rest countdown after each set (default true)
  weekly_goal           workouts per week (default 3)
  tick_interval         session clock tick (default 1s)
  queue_poll_interval   queued channel drain interval (default 30s)
  log_level             debug, info, warn or error
  log_file              log path (default ~/.local/state/fitcore/fitcore.log)

Every key can be overridden with FITCORE_<KEY>, e.g. FITCORE_PEER_ID.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:       "set <key> <value>",
	Short:     "Set a configuration key",
	Args:      cobra.ExactArgs(2),
	ValidArgs: config.Keys(),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Set(args[0], args[1]); err != nil {
			return err
		}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		color.Green("✓ %s = %s", args[0], args[1])
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a device ID and write the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		generated := cfg.EnsureDeviceID()
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		if generated {
			color.Green("✓ Generated device ID")
		}
		fmt.Printf("Device ID: %s\n", cfg.DeviceID)
		fmt.Printf("Config: %s\n", config.GetConfigPath())
		fmt.Println("\nOn the paired device, run:")
		fmt.Printf("  fitcore config set peer_id %s\n", cfg.DeviceID)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(config.GetConfigPath())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	rootCmd.AddCommand(configCmd)
}
