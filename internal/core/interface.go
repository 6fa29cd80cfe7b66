package core

import (
	"context"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

// DownloadService defines the interface for interacting with the download engine.
// This abstraction allows a console or API client to switch between a local
// embedded engine and a remote riptide server.
type DownloadService interface {
	// List returns the daemon state, every registry slot and direct transfer.
	List(ctx context.Context) (*types.Overview, error)

	// Add submits resolved entries and reports the outcome of each.
	Add(ctx context.Context, entries []types.Entry) ([]types.EntryResult, error)

	// Pause pauses a daemon job.
	Pause(ctx context.Context, gid string) error

	// Resume resumes a paused daemon job.
	Resume(ctx context.Context, gid string) error

	// Remove removes a daemon job and detaches its slot.
	Remove(ctx context.Context, gid string, force bool) error

	// Detach stops tracking a slot without touching the daemon.
	Detach(ctx context.Context, gid string) (bool, error)

	// StreamEvents returns a channel that receives engine events.
	// For local mode, this is a direct channel.
	// For remote mode, this is sourced from SSE.
	StreamEvents(ctx context.Context) (<-chan any, func(), error)

	// Shutdown handles graceful shutdown of the service
	Shutdown() error
}
