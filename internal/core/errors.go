package core

import (
	"errors"
	"fmt"
)

var (
	// ErrDaemonUnavailable means the daemon did not answer a liveness probe.
	// Only magnet and metafile entries fail with it.
	ErrDaemonUnavailable = errors.New("download daemon unavailable")

	// ErrInvalidMetafile means a staged .torrent could not be parsed.
	ErrInvalidMetafile = errors.New("invalid torrent metafile")
)

// StagingTimeoutError reports a metafile that never appeared on disk.
type StagingTimeoutError struct {
	Path     string
	Attempts int
}

func (e *StagingTimeoutError) Error() string {
	return fmt.Sprintf("metafile %s not found after %d attempts", e.Path, e.Attempts)
}
