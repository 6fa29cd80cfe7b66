package core

import (
	"context"
	"fmt"
	"sync"

	"github.com/surge-downloader/riptide/internal/download"
	"github.com/surge-downloader/riptide/internal/engine/events"
	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/registry"
	"github.com/surge-downloader/riptide/internal/utils"
)

// LocalConfig wires a LocalService.
type LocalConfig struct {
	Client           DaemonClient
	Daemon           Daemon // optional
	Runtime          *types.RuntimeConfig
	Fetcher          download.Fetcher // nil uses the default direct downloader
	RestartOnFailure bool
}

// LocalDownloadService runs the engine in process: one poll loop, one worker
// pool and one registry, with events fanned out to every subscriber.
type LocalDownloadService struct {
	client   DaemonClient
	daemon   Daemon
	runtime  *types.RuntimeConfig
	registry *registry.Registry
	pool     *download.WorkerPool
	driver   *Driver
	poller   *Poller

	progressCh chan any

	listeners []chan any
	listenMu  sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewLocalDownloadService builds the engine. Nothing runs until Start.
func NewLocalDownloadService(cfg LocalConfig) *LocalDownloadService {
	ctx, cancel := context.WithCancel(context.Background())
	s := &LocalDownloadService{
		client:     cfg.Client,
		daemon:     cfg.Daemon,
		runtime:    cfg.Runtime,
		registry:   registry.New(),
		progressCh: make(chan any, types.ProgressChannelBuffer),
		ctx:        ctx,
		cancel:     cancel,
	}

	s.pool = download.NewWorkerPool(s.progressCh, cfg.Runtime.GetMaxParallelDownloads(), cfg.Fetcher)
	s.driver = NewDriver(cfg.Client, cfg.Daemon, s.pool, cfg.Runtime, s.Publish)
	s.poller = NewPoller(cfg.Client, s.registry, cfg.Daemon, s.Publish)
	s.poller.RestartOnFailure = cfg.RestartOnFailure
	s.poller.DownloadDir = cfg.Runtime.GetFolderPath()

	// Broadcast starts immediately so early pool events are not lost
	s.wg.Add(1)
	go s.broadcastLoop()
	return s
}

// Driver exposes the orchestration driver, mainly for timing overrides.
func (s *LocalDownloadService) Driver() *Driver { return s.driver }

// Poller exposes the poll loop, mainly for timing overrides.
func (s *LocalDownloadService) Poller() *Poller { return s.poller }

// Registry exposes the slot registry.
func (s *LocalDownloadService) Registry() *registry.Registry { return s.registry }

// Start brings the daemon up (best effort), clears finished results from
// earlier sessions and launches the poll loop. A daemon that cannot be
// started leaves the service usable for direct transfers.
func (s *LocalDownloadService) Start(ctx context.Context) error {
	var startErr error
	s.startOnce.Do(func() {
		if s.daemon != nil {
			if err := s.daemon.EnsureRunning(ctx, s.runtime.GetFolderPath()); err != nil {
				utils.Error(err, "daemon not available, continuing with direct transfers only")
				startErr = err
			}
			s.Publish(events.DaemonStateMsg{State: string(s.daemon.State())})
		}

		if startErr == nil {
			if removed, err := CleanupFinished(ctx, s.client); err != nil {
				utils.Debug("startup cleanup failed: %v", err)
			} else {
				s.Publish(events.CleanupMsg{Removed: removed})
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.poller.Run(s.ctx)
		}()
	})
	return startErr
}

// Publish emits an event into the service's event stream.
func (s *LocalDownloadService) Publish(msg any) {
	select {
	case s.progressCh <- msg:
	case <-s.ctx.Done():
	}
}

func (s *LocalDownloadService) broadcastLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.progressCh:
			s.broadcast(msg)
		}
	}
}

func (s *LocalDownloadService) broadcast(msg any) {
	s.listenMu.Lock()
	defer s.listenMu.Unlock()

	for _, ch := range s.listeners {
		select {
		case ch <- msg:
		default:
			// Slow subscriber; drop rather than stall the engine
		}
	}
}

// StreamEvents subscribes to engine events. The returned func unsubscribes.
func (s *LocalDownloadService) StreamEvents(ctx context.Context) (<-chan any, func(), error) {
	ch := make(chan any, types.ProgressChannelBuffer)

	s.listenMu.Lock()
	s.listeners = append(s.listeners, ch)
	s.listenMu.Unlock()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.listenMu.Lock()
			defer s.listenMu.Unlock()
			for i, l := range s.listeners {
				if l == ch {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					break
				}
			}
			close(ch)
		})
	}

	if ctx != nil {
		go func() {
			select {
			case <-ctx.Done():
				cleanup()
			case <-s.ctx.Done():
				cleanup()
			}
		}()
	}
	return ch, cleanup, nil
}

// List returns the current registry and worker pool view.
func (s *LocalDownloadService) List(ctx context.Context) (*types.Overview, error) {
	overview := &types.Overview{
		DaemonState: "unknown",
		Slots:       s.registry.Snapshot(),
		Transfers:   s.pool.Status(),
	}
	if s.daemon != nil {
		overview.DaemonState = string(s.daemon.State())
	}
	return overview, nil
}

// Add submits entries through the driver.
func (s *LocalDownloadService) Add(ctx context.Context, entries []types.Entry) ([]types.EntryResult, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("no entries to add")
	}
	return s.driver.Process(ctx, entries), nil
}

// Pause pauses a daemon job.
func (s *LocalDownloadService) Pause(ctx context.Context, gid string) error {
	if _, err := s.client.Pause(ctx, gid); err != nil {
		utils.Error(err, "pause %s", gid)
		return err
	}
	return nil
}

// Resume resumes a paused daemon job.
func (s *LocalDownloadService) Resume(ctx context.Context, gid string) error {
	if _, err := s.client.Unpause(ctx, gid); err != nil {
		utils.Error(err, "unpause %s", gid)
		return err
	}
	return nil
}

// Remove removes a daemon job. The slot is detached even when the RPC fails,
// since the job is gone from the presentation's point of view.
func (s *LocalDownloadService) Remove(ctx context.Context, gid string, force bool) error {
	var err error
	if force {
		_, err = s.client.ForceRemove(ctx, gid)
	} else {
		_, err = s.client.Remove(ctx, gid)
	}
	s.registry.Detach(gid)
	if err != nil {
		utils.Error(err, "remove %s (force=%t)", gid, force)
		return err
	}
	return nil
}

// Detach drops the slot for gid. The daemon job is untouched.
func (s *LocalDownloadService) Detach(ctx context.Context, gid string) (bool, error) {
	return s.registry.Detach(gid), nil
}

// Shutdown stops the poll loop and the worker pool and closes subscriptions.
func (s *LocalDownloadService) Shutdown() error {
	s.stopOnce.Do(func() {
		s.pool.GracefulShutdown()
		s.cancel()
		s.wg.Wait()
	})
	return nil
}
