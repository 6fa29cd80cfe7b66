package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/surge-downloader/riptide/internal/config"
	"github.com/surge-downloader/riptide/internal/core"
	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/utils"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Persistent flags shared by every command
var (
	globalConfigPath string
	globalHost       string
	globalToken      string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "riptide [link]... | riptide batch.json",
	Short: "Download direct links, magnets and .torrent files through aria2",
	Long: `riptide fetches plain HTTP(S) links in process and hands magnet links and
.torrent metafiles to a local aria2 daemon, reporting progress on the console.

With no arguments, links are read from standard input, one per line.`,
	Version: Version,
	Args:    cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := initializeGlobalState()

		entries, err := parseInput(args)
		if err != nil {
			return err
		}
		if len(args) == 0 {
			fmt.Fprintln(os.Stderr, "Enter links, one per line. Finish with an empty line:")
			entries, err = readLinks(cmd.InOrStdin())
			if err != nil {
				return err
			}
		}
		if len(entries) == 0 {
			return fmt.Errorf("no links given")
		}

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			settings.General.FolderPath = output
		}

		// A running riptide serve takes the batch instead of a second engine
		if baseURL, token, err := resolveAPIConnection(settings, false); err == nil && baseURL != "" {
			return sendToServer(cmd.Context(), baseURL, token, entries)
		}

		keepRunning, _ := cmd.Flags().GetBool("keep-running")
		return runLocal(cmd.Context(), settings, entries, keepRunning)
	},
}

// runLocal runs the engine in process until every submitted entry settles,
// or until interrupted.
func runLocal(parent context.Context, settings *config.Settings, entries []types.Entry, keepRunning bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, _ := newLocalService(settings)
	defer func() { _ = svc.Shutdown() }()

	stream, cleanup, err := svc.StreamEvents(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	consumer := newConsoleConsumer(os.Stdout, settings.General.OpenOnFinish, settings.General.FolderPath)
	done := make(chan struct{})
	go func() {
		defer close(done)
		consumer.Consume(stream)
	}()

	// The daemon is optional: direct links still work without it
	_ = svc.Start(ctx)

	results, err := svc.Add(ctx, entries)
	if err != nil {
		return err
	}
	printResults(os.Stdout, results)
	consumer.Expect(results, time.Now())

	if keepRunning {
		fmt.Println("Press Ctrl+C to exit.")
		<-ctx.Done()
	} else {
		waitSettled(ctx, svc, consumer)
	}

	fmt.Println("Shutting down...")
	_ = svc.Shutdown()
	<-done
	return nil
}

// waitSettled returns once the consumer has nothing outstanding.
func waitSettled(ctx context.Context, svc core.DownloadService, c *consoleConsumer) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if ov, err := svc.List(ctx); err == nil {
				c.Observe(ov)
			}
			if c.Settled(now) {
				fmt.Println("All downloads finished.")
				return
			}
		}
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&globalConfigPath, "config", "", "Settings file (default: <config dir>/settings.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalHost, "host", "", "Address of a running riptide serve (or set RIPTIDE_HOST)")
	rootCmd.PersistentFlags().StringVar(&globalToken, "token", "", "API token for --host (or set RIPTIDE_TOKEN)")

	rootCmd.Flags().StringP("output", "o", "", "Download folder (overrides general.folder_path)")
	rootCmd.Flags().Bool("keep-running", false, "Keep reporting progress after every link settles")
	rootCmd.SetVersionTemplate("riptide version {{.Version}}\n")
}

var settingsLoaded *config.Settings

// initializeGlobalState sets up the riptide directories, logging and settings.
// A broken settings file falls back to defaults so the CLI stays usable.
func initializeGlobalState() *config.Settings {
	if settingsLoaded != nil {
		return settingsLoaded
	}

	if err := config.EnsureDirs(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create %s: %v\n", config.GetRiptideDir(), err)
	}
	utils.ConfigureDebug(config.GetLogsDir())

	settings, err := config.LoadSettings(globalConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
		settings = config.DefaultSettings()
	}

	retention := settings.General.LogRetentionCount
	if retention <= 0 {
		retention = types.DefaultLogRetentionCount
	}
	utils.CleanupLogs(retention)

	settingsLoaded = settings
	return settings
}
