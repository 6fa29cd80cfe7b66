package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Print the secrets used by riptide",
	Long:  `Print the API bearer token used by riptide serve, and with --rpc the aria2 RPC secret.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := initializeGlobalState()

		if rpc, _ := cmd.Flags().GetBool("rpc"); rpc {
			fmt.Println(settings.Daemon.Secret)
			return nil
		}

		token, err := ensureAPIToken(settings)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("riptide version %s (built %s)\n", Version, BuildTime)
	},
}

func init() {
	secretCmd.Flags().Bool("rpc", false, "Print the aria2 RPC secret instead")
	rootCmd.AddCommand(secretCmd, versionCmd)
}
