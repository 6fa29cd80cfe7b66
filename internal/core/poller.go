package core

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/surge-downloader/riptide/internal/aria2"
	"github.com/surge-downloader/riptide/internal/engine/events"
	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/registry"
	"github.com/surge-downloader/riptide/internal/utils"
)

// Poller drives the registry from daemon state on a fixed interval. It is
// the only caller of Registry.Reconcile.
type Poller struct {
	client   DaemonClient
	registry *registry.Registry
	daemon   Daemon
	publish  func(any)

	Interval    time.Duration
	StoppedSize int

	// RestartOnFailure triggers one EnsureRunning attempt when a tick
	// cannot reach the daemon at all.
	RestartOnFailure bool
	DownloadDir      string

	restarting atomic.Bool
}

// NewPoller creates a poller. d may be nil, which disables restarts.
func NewPoller(client DaemonClient, reg *registry.Registry, d Daemon, publish func(any)) *Poller {
	if publish == nil {
		publish = func(any) {}
	}
	return &Poller{
		client:      client,
		registry:    reg,
		daemon:      d,
		publish:     publish,
		Interval:    types.PollInterval,
		StoppedSize: types.StoppedQueryLimit,
	}
}

// Run ticks until ctx is cancelled. A failed tick is reported and the loop
// carries on.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick performs one poll round trip and publishes the resulting events.
func (p *Poller) Tick(ctx context.Context) []any {
	records, err := p.fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		utils.Debug("poll failed: %v", err)
		p.publish(events.PollErrorMsg{Err: err})
		if aria2.IsTransport(err) {
			p.restart(ctx)
		}
		return nil
	}

	out := p.registry.Reconcile(records)
	for _, msg := range out {
		p.publish(msg)
	}
	return out
}

// fetch merges active jobs with recent stopped results. A finished stopped
// result is kept only when its id is already tracked, so it can still
// produce its completion event.
func (p *Poller) fetch(ctx context.Context) ([]types.DownloadRecord, error) {
	active, err := p.client.TellActive(ctx)
	if err != nil {
		return nil, err
	}
	stopped, err := p.client.TellStopped(ctx, 0, p.StoppedSize)
	if err != nil {
		return nil, err
	}

	records := aria2.ToRecords(active)
	for _, rec := range aria2.ToRecords(stopped) {
		if rec.Progress < 1 || p.registry.Tracks(rec.ID) {
			records = append(records, rec)
		}
	}
	return records, nil
}

func (p *Poller) restart(ctx context.Context) {
	if !p.RestartOnFailure || p.daemon == nil {
		return
	}
	if !p.restarting.CompareAndSwap(false, true) {
		return
	}

	go func() {
		defer p.restarting.Store(false)
		utils.Info("daemon unreachable, attempting restart")
		if err := p.daemon.EnsureRunning(ctx, p.DownloadDir); err != nil {
			utils.Error(err, "daemon restart failed")
		}
	}()
}
