// Package download runs direct HTTP transfers on a bounded set of workers.
package download

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/surge-downloader/riptide/internal/engine/events"
	"github.com/surge-downloader/riptide/internal/engine/single"
	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/utils"
)

// ErrPoolClosed is returned for tasks added after shutdown.
var ErrPoolClosed = errors.New("worker pool is shut down")

// ErrCancelled is the result of a task cancelled by id.
var ErrCancelled = errors.New("transfer cancelled")

// Fetcher performs one transfer. single.Downloader satisfies it.
type Fetcher interface {
	Download(ctx context.Context, url, dest string, onProgress func(percent int), onDone func()) (string, error)
}

// Task describes one direct transfer.
type Task struct {
	ID       string
	URL      string
	DestPath string
	Staging  bool // Fetching a metafile that is handed to the daemon afterwards
}

// Result is delivered exactly once per task.
type Result struct {
	Path string
	Err  error
}

// activeTransfer tracks a transfer that's queued or running
type activeTransfer struct {
	status types.TransferStatus
	cancel context.CancelFunc
	result chan Result
}

type queuedTask struct {
	task Task
	ctx  context.Context
}

type WorkerPool struct {
	taskChan   chan queuedTask
	progressCh chan<- any
	fetcher    Fetcher
	transfers  map[string]*activeTransfer
	mu         sync.RWMutex
	wg         sync.WaitGroup // Running workers
	adds       sync.WaitGroup // Add calls still handing a task to the queue
	closed     bool
	ctx        context.Context
	stop       context.CancelFunc
}

// NewWorkerPool starts maxDownloads workers. A nil fetcher uses a default
// single.Downloader.
func NewWorkerPool(progressCh chan<- any, maxDownloads int, fetcher Fetcher) *WorkerPool {
	if maxDownloads <= 0 {
		maxDownloads = types.DefaultMaxParallel
	}
	if fetcher == nil {
		fetcher = single.NewDownloader(nil)
	}

	ctx, stop := context.WithCancel(context.Background())
	pool := &WorkerPool{
		taskChan:   make(chan queuedTask, types.ProgressChannelBuffer), // Buffered to avoid blocking add
		progressCh: progressCh,
		fetcher:    fetcher,
		transfers:  make(map[string]*activeTransfer),
		ctx:        ctx,
		stop:       stop,
	}
	for i := 0; i < maxDownloads; i++ {
		pool.wg.Add(1)
		go pool.worker()
	}
	return pool
}

// Add queues a task and returns a channel that receives its result.
func (p *WorkerPool) Add(task Task) <-chan Result {
	result := make(chan Result, 1)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		result <- Result{Err: ErrPoolClosed}
		return result
	}
	if _, exists := p.transfers[task.ID]; exists {
		p.mu.Unlock()
		result <- Result{Err: errors.New("duplicate transfer id " + task.ID)}
		return result
	}

	ctx, cancel := context.WithCancel(p.ctx)
	p.transfers[task.ID] = &activeTransfer{
		status: types.TransferStatus{
			ID:       task.ID,
			URL:      task.URL,
			DestPath: task.DestPath,
			Staging:  task.Staging,
			Status:   "queued",
		},
		cancel: cancel,
		result: result,
	}
	p.adds.Add(1)
	p.mu.Unlock()
	defer p.adds.Done()

	p.publish(events.TransferQueuedMsg{
		TransferID: task.ID,
		URL:        task.URL,
		DestPath:   task.DestPath,
		Staging:    task.Staging,
	})

	select {
	case p.taskChan <- queuedTask{task: task, ctx: ctx}:
	case <-p.ctx.Done():
		p.finish(task, "", ErrPoolClosed)
	}
	return result
}

// Cancel stops a queued or running transfer. Unknown ids are ignored.
func (p *WorkerPool) Cancel(id string) {
	p.mu.RLock()
	at, exists := p.transfers[id]
	p.mu.RUnlock()

	if !exists || at == nil {
		return
	}
	at.cancel()
}

// ActiveCount returns the number of queued or running transfers.
func (p *WorkerPool) ActiveCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	count := 0
	for _, at := range p.transfers {
		if at.status.Status == "queued" || at.status.Status == "downloading" {
			count++
		}
	}
	return count
}

// Status returns every known transfer, ordered by id.
func (p *WorkerPool) Status() []types.TransferStatus {
	p.mu.RLock()
	out := make([]types.TransferStatus, 0, len(p.transfers))
	for _, at := range p.transfers {
		out = append(out, at.status)
	}
	p.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Forget drops a finished transfer from Status. Active transfers are kept.
func (p *WorkerPool) Forget(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	at, exists := p.transfers[id]
	if !exists || at.status.Status == "queued" || at.status.Status == "downloading" {
		return false
	}
	delete(p.transfers, id)
	return true
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case qt := <-p.taskChan:
			p.run(qt)
		}
	}
}

func (p *WorkerPool) run(qt queuedTask) {
	task := qt.task
	if err := qt.ctx.Err(); err != nil {
		p.finish(task, "", p.cancelCause(err))
		return
	}

	p.update(task.ID, func(s *types.TransferStatus) { s.Status = "downloading" })
	utils.Debug("Transfer %s started: %s -> %s", task.ID, task.URL, task.DestPath)

	path, err := p.fetcher.Download(qt.ctx, task.URL, task.DestPath,
		func(percent int) {
			p.update(task.ID, func(s *types.TransferStatus) { s.Percent = percent })
			p.publish(events.TransferProgressMsg{TransferID: task.ID, Percent: percent})
		},
		nil,
	)
	if err != nil && qt.ctx.Err() != nil {
		err = p.cancelCause(err)
	}
	p.finish(task, path, err)
}

// cancelCause distinguishes a per-task cancel from a pool shutdown.
func (p *WorkerPool) cancelCause(err error) error {
	if p.ctx.Err() != nil {
		return ErrPoolClosed
	}
	if errors.Is(err, context.Canceled) {
		return ErrCancelled
	}
	return err
}

func (p *WorkerPool) finish(task Task, path string, err error) {
	var result chan Result
	p.mu.Lock()
	if at, ok := p.transfers[task.ID]; ok {
		at.cancel()
		result = at.result
		if err != nil {
			at.status.Status = "error"
			at.status.Error = err.Error()
		} else {
			at.status.Status = "completed"
			at.status.Percent = 100
			at.status.DestPath = path
		}
	}
	p.mu.Unlock()

	if err != nil {
		utils.Debug("Transfer %s failed: %v", task.ID, err)
		p.publish(events.TransferErrorMsg{TransferID: task.ID, DestPath: task.DestPath, Staging: task.Staging, Err: err})
	} else {
		utils.Debug("Transfer %s completed: %s", task.ID, path)
		p.publish(events.TransferCompleteMsg{TransferID: task.ID, DestPath: path, Staging: task.Staging})
	}

	if result != nil {
		result <- Result{Path: path, Err: err}
	}
}

func (p *WorkerPool) update(id string, fn func(*types.TransferStatus)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if at, ok := p.transfers[id]; ok {
		fn(&at.status)
	}
}

func (p *WorkerPool) publish(msg any) {
	if p.progressCh == nil {
		return
	}
	select {
	case p.progressCh <- msg:
	case <-p.ctx.Done():
	}
}

// GracefulShutdown cancels all transfers and waits for workers to exit.
// Tasks still in the queue resolve with ErrPoolClosed.
func (p *WorkerPool) GracefulShutdown() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	p.stop()
	p.wg.Wait() // Blocks until all workers call Done()
	p.adds.Wait()

	for {
		select {
		case qt := <-p.taskChan:
			p.finish(qt.task, "", ErrPoolClosed)
		default:
			return
		}
	}
}
