package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/riptide/internal/core"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tracked downloads",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc core.DownloadService, remote bool) error {
			overview, err := svc.List(cmd.Context())
			if err != nil {
				return err
			}
			printOverview(os.Stdout, overview)
			return nil
		})
	},
}

var pauseCmd = &cobra.Command{
	Use:   "pause <gid>",
	Short: "Pause a daemon download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc core.DownloadService, remote bool) error {
			if err := svc.Pause(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Paused %s\n", args[0])
			return nil
		})
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <gid>",
	Short: "Resume a paused daemon download",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc core.DownloadService, remote bool) error {
			if err := svc.Resume(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Resumed %s\n", args[0])
			return nil
		})
	},
}

var removeCmd = &cobra.Command{
	Use:     "remove <gid>",
	Aliases: []string{"rm"},
	Short:   "Remove a daemon download",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		return withService(cmd.Context(), func(svc core.DownloadService, remote bool) error {
			if err := svc.Remove(cmd.Context(), args[0], force); err != nil {
				return err
			}
			fmt.Printf("Removed %s\n", args[0])
			return nil
		})
	},
}

var detachCmd = &cobra.Command{
	Use:   "detach <gid>",
	Short: "Stop tracking a download in a running serve instance",
	Long: `Drop the display slot for a gid. The daemon job keeps running. Without a
running serve instance there is nothing to detach from.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc core.DownloadService, remote bool) error {
			if !remote {
				return fmt.Errorf("riptide serve is not running")
			}
			detached, err := svc.Detach(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !detached {
				fmt.Printf("%s is not tracked\n", args[0])
				return nil
			}
			fmt.Printf("Detached %s\n", args[0])
			return nil
		})
	},
}

func init() {
	removeCmd.Flags().BoolP("force", "f", false, "Remove immediately, without waiting for the daemon to wind down")

	rootCmd.AddCommand(listCmd, pauseCmd, resumeCmd, removeCmd, detachCmd)
}
