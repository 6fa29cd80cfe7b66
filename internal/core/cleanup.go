package core

import (
	"context"

	"github.com/surge-downloader/riptide/internal/aria2"
	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/utils"
)

// CleanupFinished force-removes finished results left over from an earlier
// session, so they do not resurface as new slots. It returns how many were
// removed. Individual removal failures are logged and skipped.
func CleanupFinished(ctx context.Context, client DaemonClient) (int, error) {
	stopped, err := client.TellStopped(ctx, 0, types.CleanupQueryLimit)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, s := range stopped {
		rec := aria2.ToRecord(s)
		if s.Status != "complete" && rec.Progress < 1 {
			continue
		}
		if _, err := client.ForceRemove(ctx, s.GID); err != nil {
			utils.Debug("cleanup: forceRemove %s: %v", s.GID, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		utils.Info("cleared %d finished downloads from previous sessions", removed)
	}
	return removed, nil
}
