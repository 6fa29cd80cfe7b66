package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the aria2 daemon",
	Long:  `Start the aria2 daemon, or check whether it answers on the configured RPC endpoint.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start aria2 if it is not already running",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := initializeGlobalState()
		_, sup := newSupervisor(settings)

		// Covers provisioning plus every readiness probe
		ctx, cancel := context.WithTimeout(cmd.Context(), types.ReleaseFetchTimeout+
			time.Duration(types.MaxStartProbes+1)*types.StartProbeInterval)
		defer cancel()

		fmt.Printf("Starting aria2 on %s...\n", settings.Daemon.RPCURL)
		if err := sup.EnsureRunning(ctx, settings.General.FolderPath); err != nil {
			return fmt.Errorf("daemon %s: %w", sup.State(), err)
		}
		fmt.Println(successStyle.Render("aria2 is ready."))
		return nil
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check whether aria2 answers",
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := initializeGlobalState()
		client, _ := newSupervisor(settings)

		version, err := client.GetVersion(cmd.Context())
		if err != nil {
			fmt.Printf("aria2 is NOT running at %s (%v).\n", settings.Daemon.RPCURL, err)
			return nil
		}
		fmt.Printf("aria2 %s is running at %s.\n", version.Version, settings.Daemon.RPCURL)
		if len(version.EnabledFeatures) > 0 {
			fmt.Println(mutedStyle.Render(fmt.Sprintf("Features: %v", version.EnabledFeatures)))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.AddCommand(daemonStartCmd)
	daemonCmd.AddCommand(daemonStatusCmd)
}
