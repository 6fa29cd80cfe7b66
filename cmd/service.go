package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/surge-downloader/riptide/internal/aria2"
	"github.com/surge-downloader/riptide/internal/config"
	"github.com/surge-downloader/riptide/internal/core"
	"github.com/surge-downloader/riptide/internal/daemon"
	"github.com/surge-downloader/riptide/internal/engine/events"
	"github.com/surge-downloader/riptide/internal/engine/types"
)

// newSupervisor builds the aria2 client and the supervisor that keeps it reachable.
func newSupervisor(settings *config.Settings) (*aria2.Client, *daemon.Supervisor) {
	client := aria2.NewClient(settings.Daemon.RPCURL, settings.Daemon.Secret)
	sup := daemon.New(daemon.Config{
		Secret:        settings.Daemon.Secret,
		RPCPort:       daemon.PortFromURL(settings.Daemon.RPCURL),
		Executable:    settings.Daemon.Executable,
		InstallDir:    settings.Daemon.InstallDir,
		ReleaseURL:    settings.Daemon.ReleaseURL,
		AutoProvision: settings.Daemon.AutoProvision,
	}, client)
	return client, sup
}

// newLocalService wires the in-process engine. Supervisor state changes are
// published on the service's event stream.
func newLocalService(settings *config.Settings) (*core.LocalDownloadService, *daemon.Supervisor) {
	client, sup := newSupervisor(settings)
	svc := core.NewLocalDownloadService(core.LocalConfig{
		Client:           client,
		Daemon:           sup,
		Runtime:          settings.ToRuntimeConfig(),
		RestartOnFailure: settings.Daemon.RestartOnFailure,
	})
	sup.OnStateChange(func(s daemon.State) {
		svc.Publish(events.DaemonStateMsg{State: string(s)})
	})
	return svc, sup
}

// withService runs fn against a serve instance when one is reachable, or
// against a short-lived local engine otherwise.
func withService(ctx context.Context, fn func(svc core.DownloadService, remote bool) error) error {
	settings := initializeGlobalState()

	baseURL, token, err := resolveAPIConnection(settings, false)
	if err != nil {
		return err
	}
	if baseURL != "" {
		svc := core.NewRemoteDownloadService(baseURL, token)
		defer func() { _ = svc.Shutdown() }()
		return fn(svc, true)
	}

	svc, _ := newLocalService(settings)
	defer func() { _ = svc.Shutdown() }()

	// One poll round fills the registry so listings are not empty
	svc.Poller().Tick(ctx)
	return fn(svc, false)
}

// sendToServer hands a batch to a running serve instance and prints the outcome.
func sendToServer(ctx context.Context, baseURL, token string, entries []types.Entry) error {
	svc := core.NewRemoteDownloadService(baseURL, token)
	defer func() { _ = svc.Shutdown() }()

	results, err := svc.Add(ctx, entries)
	if err != nil {
		return fmt.Errorf("failed to send to %s: %w", baseURL, err)
	}
	fmt.Printf("Sent %d link(s) to %s\n", len(results), baseURL)
	printResults(os.Stdout, results)
	return nil
}

// printResults writes one line per submitted entry.
func printResults(w io.Writer, results []types.EntryResult) {
	for _, r := range results {
		fmt.Fprintln(w, formatResult(r))
	}
}

func formatResult(r types.EntryResult) string {
	link := truncate(r.Entry.URL, 60)
	if r.Error != "" {
		return errorStyle.Render("Failed: ") + fmt.Sprintf("%s: %s", link, r.Error)
	}
	switch {
	case r.Kind == types.KindDirect:
		return fmt.Sprintf("Queued: %s [%s]", link, shortID(r.ID))
	case r.Confirmed:
		return fmt.Sprintf("Submitted: %s [%s]", link, shortID(r.ID))
	default:
		return fmt.Sprintf("Submitted: %s [%s] (unconfirmed)", link, shortID(r.ID))
	}
}

// printOverview renders a listing as bordered tables.
func printOverview(w io.Writer, ov *types.Overview) {
	fmt.Fprintf(w, "Daemon: %s\n", ov.DaemonState)

	if len(ov.Slots) == 0 && len(ov.Transfers) == 0 {
		fmt.Fprintln(w, "No downloads.")
		return
	}

	if len(ov.Slots) > 0 {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(mutedStyle).
			Headers("SLOT", "GID", "NAME", "STATE", "PROGRESS", "SPEED")
		for _, s := range ov.Slots {
			t.Row(strconv.Itoa(s.Slot), s.ID, truncate(s.Name, 40), string(s.Record.State),
				fmt.Sprintf("%d%%", s.Record.Percent()), speedOrDash(s.Record.DownloadSpeed))
		}
		fmt.Fprintln(w, t.String())
	}

	if len(ov.Transfers) > 0 {
		t := table.New().
			Border(lipgloss.NormalBorder()).
			BorderStyle(mutedStyle).
			Headers("TRANSFER", "STATUS", "PROGRESS", "DESTINATION")
		for _, tr := range ov.Transfers {
			t.Row(shortID(tr.ID), tr.Status, percentOrDash(tr.Percent), tr.DestPath)
		}
		fmt.Fprintln(w, t.String())
	}
}
