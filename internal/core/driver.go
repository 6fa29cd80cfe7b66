package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anacrolix/torrent/metainfo"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/surge-downloader/riptide/internal/aria2"
	"github.com/surge-downloader/riptide/internal/daemon"
	"github.com/surge-downloader/riptide/internal/download"
	"github.com/surge-downloader/riptide/internal/engine/events"
	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/utils"
)

// DaemonClient is the part of the aria2 client the core drives.
type DaemonClient interface {
	AddURI(ctx context.Context, uris []string, opts aria2.Options) (string, error)
	AddTorrent(ctx context.Context, torrent []byte, opts aria2.Options) (string, error)
	TellStatus(ctx context.Context, gid string) (*aria2.Status, error)
	TellActive(ctx context.Context) ([]aria2.Status, error)
	TellStopped(ctx context.Context, offset, num int) ([]aria2.Status, error)
	Remove(ctx context.Context, gid string) (string, error)
	ForceRemove(ctx context.Context, gid string) (string, error)
	Pause(ctx context.Context, gid string) (string, error)
	Unpause(ctx context.Context, gid string) (string, error)
}

// Daemon reports and restores daemon liveness. *daemon.Supervisor satisfies it.
type Daemon interface {
	IsRunning(ctx context.Context) bool
	EnsureRunning(ctx context.Context, downloadDir string) error
	State() daemon.State
}

// Driver submits resolved entries. Each entry takes one of three paths
// depending on Classify, and a failing entry never affects the others.
type Driver struct {
	client  DaemonClient
	daemon  Daemon
	pool    *download.WorkerPool
	publish func(any)

	Root        string
	MaxParallel int

	StagingAttempts int
	StagingInterval time.Duration
	ConfirmAttempts int
	ConfirmInterval time.Duration

	newID func() string
}

// NewDriver wires a driver. publish may be nil.
func NewDriver(client DaemonClient, d Daemon, pool *download.WorkerPool, runtime *types.RuntimeConfig, publish func(any)) *Driver {
	if publish == nil {
		publish = func(any) {}
	}
	return &Driver{
		client:          client,
		daemon:          d,
		pool:            pool,
		publish:         publish,
		Root:            runtime.GetFolderPath(),
		MaxParallel:     runtime.GetMaxParallelDownloads(),
		StagingAttempts: types.StagingAttempts,
		StagingInterval: types.StagingInterval,
		ConfirmAttempts: types.ConfirmAttempts,
		ConfirmInterval: types.ConfirmInterval,
		newID:           func() string { return uuid.New().String() },
	}
}

// Process submits a batch concurrently and returns one result per entry, in
// input order. Empty links are skipped.
func (d *Driver) Process(ctx context.Context, entries []types.Entry) []types.EntryResult {
	results := make([]types.EntryResult, len(entries))

	var g errgroup.Group
	g.SetLimit(d.MaxParallel)
	for i, entry := range entries {
		if strings.TrimSpace(entry.URL) == "" {
			results[i] = types.EntryResult{Entry: entry, Error: "empty link"}
			continue
		}
		g.Go(func() error {
			results[i] = d.Submit(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Submit handles one entry. Direct transfers return as soon as they are
// queued. Magnet and metafile entries return once the daemon holds them.
func (d *Driver) Submit(ctx context.Context, entry types.Entry) types.EntryResult {
	kind := Classify(entry.URL)
	result := types.EntryResult{Entry: entry, Kind: kind}

	var err error
	switch kind {
	case types.KindMagnet:
		result.ID, result.Confirmed, err = d.submitMagnet(ctx, entry)
	case types.KindMetafile:
		result.ID, result.Confirmed, err = d.submitMetafile(ctx, entry)
	default:
		result.ID = d.submitDirect(entry)
	}

	if err != nil {
		utils.Error(err, "entry %s failed", entry.URL)
		result.Error = err.Error()
		d.publish(events.EntryFailedMsg{Entry: entry, Kind: kind, Err: err})
		return result
	}
	if kind != types.KindDirect {
		d.publish(events.EntrySubmittedMsg{Entry: entry, Kind: kind, GID: result.ID, Confirmed: result.Confirmed})
	}
	return result
}

// destination resolves an entry's relative path under Root. An empty or
// slash-terminated path denotes a directory.
func (d *Driver) destination(entry types.Entry) string {
	dest := filepath.Join(d.Root, filepath.FromSlash(entry.Path))
	if entry.Path == "" || strings.HasSuffix(entry.Path, "/") || strings.HasSuffix(entry.Path, `\`) {
		dest += string(os.PathSeparator)
	}
	return dest
}

func (d *Driver) submitDirect(entry types.Entry) string {
	id := d.newID()
	done := d.pool.Add(download.Task{ID: id, URL: entry.URL, DestPath: d.destination(entry)})

	// The pool always resolves done, so this never outlives the pool.
	go func() {
		if res := <-done; res.Err != nil {
			d.publish(events.EntryFailedMsg{Entry: entry, Kind: types.KindDirect, Err: res.Err})
		}
	}()
	return id
}

func (d *Driver) submitMagnet(ctx context.Context, entry types.Entry) (string, bool, error) {
	if !d.daemonReady(ctx) {
		return "", false, ErrDaemonUnavailable
	}

	gid, err := d.client.AddURI(ctx, []string{strings.TrimSpace(entry.URL)}, aria2.Options{"dir": d.Root})
	if err != nil {
		return "", false, fmt.Errorf("add magnet: %w", err)
	}
	utils.Info("magnet added with gid %s", gid)
	return gid, d.confirm(ctx, gid), nil
}

func (d *Driver) submitMetafile(ctx context.Context, entry types.Entry) (string, bool, error) {
	path, err := d.stage(ctx, entry)
	if err != nil {
		return "", false, err
	}

	if err := validateMetafile(path); err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("read metafile: %w", err)
	}

	if !d.daemonReady(ctx) {
		return "", false, ErrDaemonUnavailable
	}
	gid, err := d.client.AddTorrent(ctx, data, aria2.Options{"dir": d.Root})
	if err != nil {
		return "", false, fmt.Errorf("add torrent: %w", err)
	}
	utils.Info("torrent %s added with gid %s", filepath.Base(path), gid)
	return gid, d.confirm(ctx, gid), nil
}

// stage fetches the metafile through the pool, then waits for it on disk.
func (d *Driver) stage(ctx context.Context, entry types.Entry) (string, error) {
	id := d.newID()
	done := d.pool.Add(download.Task{ID: id, URL: entry.URL, DestPath: d.destination(entry), Staging: true})

	var res download.Result
	select {
	case res = <-done:
	case <-ctx.Done():
		d.pool.Cancel(id)
		return "", ctx.Err()
	}
	if res.Err != nil {
		return "", fmt.Errorf("fetch metafile: %w", res.Err)
	}
	if err := d.waitForFile(ctx, res.Path); err != nil {
		return "", err
	}
	return res.Path, nil
}

// waitForFile checks for path up to StagingAttempts times.
func (d *Driver) waitForFile(ctx context.Context, path string) error {
	for attempt := 1; attempt <= d.StagingAttempts; attempt++ {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		if attempt == d.StagingAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.StagingInterval):
		}
	}
	return &StagingTimeoutError{Path: path, Attempts: d.StagingAttempts}
}

// confirm asks the daemon about gid until it answers. An unconfirmed gid is
// still a successful submission.
func (d *Driver) confirm(ctx context.Context, gid string) bool {
	for attempt := 1; attempt <= d.ConfirmAttempts; attempt++ {
		if _, err := d.client.TellStatus(ctx, gid); err == nil {
			return true
		}
		if attempt == d.ConfirmAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d.ConfirmInterval):
		}
	}
	utils.Warn("gid %s not confirmed after %d attempts", gid, d.ConfirmAttempts)
	return false
}

func (d *Driver) daemonReady(ctx context.Context) bool {
	if d.daemon == nil {
		return true
	}
	return d.daemon.IsRunning(ctx)
}

func validateMetafile(path string) error {
	mi, err := metainfo.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetafile, err)
	}
	info, err := mi.UnmarshalInfo()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMetafile, err)
	}
	utils.Debug("metafile %s: name=%q infohash=%s", filepath.Base(path), info.Name, mi.HashInfoBytes().HexString())
	return nil
}

// IsDaemonUnavailable reports whether err means the daemon could not be reached.
func IsDaemonUnavailable(err error) bool {
	return errors.Is(err, ErrDaemonUnavailable) || aria2.IsTransport(err)
}
