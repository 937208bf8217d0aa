// ABOUTME: CLI commands for syncing with the paired device.
// ABOUTME: Supports status, request, push, drain, link, and unlink operations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/fitcore/internal/app"
	"github.com/spf13/cobra"
)

var syncWithTemplates bool

var syncCmd = &cobra.Command{
	Use:     "sync",
	Aliases: []string{"s"},
	Short:   "Sync with the paired device",
	Long: `Sync the live session, templates and metrics with the paired device.

CHANNELS:

  direct   Redis pub/sub, delivered only while the peer is online
           (config: redis_addr)
  queued   Charm KV store-and-forward, collected on the next drain
           (config: charm_queue = true)

Session start, updates, set completions and metrics only go direct.
Completion, sync requests and template pushes also go through the queue.

COMMANDS:

  status      Show device IDs, channels and last sync
  request     Ask the peer for its session (and templates)
  push        Push all templates to the peer
  drain       Collect queued messages now
  link        Link this device to your Charm account
  unlink      Disconnect this device from Charm

'fitcore run' keeps both channels serviced continuously.`,
}

var syncStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := startDevice(cmd.Context())
		if err != nil {
			return err
		}

		faint := color.New(color.Faint)
		fmt.Printf("Device: %s\n", cfg.DeviceID)
		if cfg.PeerID == "" {
			color.Yellow("Peer: not configured")
			fmt.Println("\nRun 'fitcore config set peer_id <id>' with the other device's ID.")
		} else {
			fmt.Printf("Peer: %s\n", cfg.PeerID)
		}

		direct, queued := d.Channels()
		fmt.Printf("Direct channel: %s\n", onOff(direct))
		if direct {
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
			reachable := d.PeerReachable(ctx)
			cancel()
			if reachable {
				color.Green("  ✓ Peer online")
			} else {
				color.Yellow("  Peer offline")
			}
		}
		fmt.Printf("Queued channel: %s\n", onOff(queued))

		if d.Charm != nil {
			if id, err := d.Charm.ID(); err == nil {
				fmt.Printf("Charm ID: %s\n", id)
			} else {
				color.Yellow("Charm: not linked")
			}
			if d.Charm.IsReadOnly() {
				color.Yellow("  Read-only: another fitcore process holds the database")
			}
		}

		if at, ok := d.LastSync(); ok {
			fmt.Printf("Last sync: %s %s\n", at.Local().Format("2006-01-02 15:04:05"),
				faint.Sprintf("(%s ago)", time.Since(at).Round(time.Second)))
		} else {
			fmt.Println("Last sync: never")
		}
		return nil
	},
}

var syncRequestCmd = &cobra.Command{
	Use:   "request",
	Short: "Ask the peer for its session",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := onDevice(cmd, func(d *app.Device) error {
			if err := requireChannel(d); err != nil {
				return err
			}
			d.Bridge.RequestSync(syncWithTemplates)
			return nil
		}); err != nil {
			return err
		}
		color.Green("✓ Sync requested")
		fmt.Println("Replies arrive while 'fitcore run' is active, or on the next 'fitcore sync drain'.")
		return nil
	},
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "Push all templates to the peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		var n int
		if err := onDevice(cmd, func(d *app.Device) error {
			if err := requireChannel(d); err != nil {
				return err
			}
			n = d.Templates.Len()
			d.Bridge.PushTemplates()
			return nil
		}); err != nil {
			return err
		}
		color.Green("✓ Pushed %d templates", n)
		return nil
	},
}

var syncDrainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Collect queued messages from the peer",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := startDevice(cmd.Context())
		if err != nil {
			return err
		}
		if _, queued := d.Channels(); !queued {
			return fmt.Errorf("queued channel not configured (set charm_queue and peer_id)")
		}
		n, err := d.DrainQueue(cmd.Context())
		if err != nil {
			return fmt.Errorf("drain failed: %w", err)
		}
		if err := d.Settle(cmd.Context()); err != nil {
			return err
		}
		color.Green("✓ Applied %d queued messages", n)
		return nil
	},
}

var syncLinkCmd = &cobra.Command{
	Use:   "link",
	Short: "Link this device to Charm",
	Long: `Link this device to your Charm account.

Both paired devices must be linked to the same Charm account for the
queued channel to work.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCharm("link")
	},
}

var syncUnlinkCmd = &cobra.Command{
	Use:   "unlink",
	Short: "Disconnect from Charm",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCharm("unlink")
	},
}

func runCharm(action string) error {
	charmCmd := exec.Command("charm", action)
	charmCmd.Stdin = os.Stdin
	charmCmd.Stdout = os.Stdout
	charmCmd.Stderr = os.Stderr

	if err := charmCmd.Run(); err != nil {
		return fmt.Errorf("failed to %s: %w\n\nMake sure 'charm' CLI is installed: go install github.com/charmbracelet/charm@latest", action, err)
	}
	color.Green("✓ Charm %s complete", action)
	return nil
}

func requireChannel(d *app.Device) error {
	direct, queued := d.Channels()
	if !direct && !queued {
		return fmt.Errorf("no sync channel configured (set peer_id and redis_addr or charm_queue)")
	}
	return nil
}

func onOff(b bool) string {
	if b {
		return "enabled"
	}
	return "disabled"
}

func init() {
	syncRequestCmd.Flags().BoolVarP(&syncWithTemplates, "templates", "t", false, "also ask for the peer's templates")

	syncCmd.AddCommand(syncStatusCmd)
	syncCmd.AddCommand(syncRequestCmd)
	syncCmd.AddCommand(syncPushCmd)
	syncCmd.AddCommand(syncDrainCmd)
	syncCmd.AddCommand(syncLinkCmd)
	syncCmd.AddCommand(syncUnlinkCmd)
	rootCmd.AddCommand(syncCmd)
}
