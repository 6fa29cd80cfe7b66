package aria2

import (
	"path"
	"strconv"
	"strings"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

var stateTable = map[string]types.LifecycleState{
	"active":   types.StateDownloading,
	"waiting":  types.StateQueued,
	"paused":   types.StatePaused,
	"error":    types.StateError,
	"complete": types.StateUploading,
	"removed":  types.StateError,
}

// MapState converts an aria2 status word. Unknown words pass through.
func MapState(native string) types.LifecycleState {
	if s, ok := stateTable[native]; ok {
		return s
	}
	return types.LifecycleState(native)
}

// ToRecord normalizes a daemon status. It is pure and tolerates missing fields.
func ToRecord(s Status) types.DownloadRecord {
	total := parseCount(s.TotalLength)
	completed := parseCount(s.CompletedLength)

	var progress float64
	if total > 0 {
		progress = float64(completed) / float64(total)
	}

	var followed []string
	if len(s.FollowedBy) > 0 {
		followed = append([]string(nil), s.FollowedBy...)
	}

	return types.DownloadRecord{
		ID:             s.GID,
		DisplayName:    displayName(s),
		State:          MapState(s.Status),
		Progress:       progress,
		TotalBytes:     total,
		CompletedBytes: completed,
		DownloadSpeed:  parseCount(s.DownloadSpeed),
		FollowedBy:     followed,
		SaveDirectory:  saveDirectory(s),
	}
}

// ToRecords maps a batch, preserving order.
func ToRecords(batch []Status) []types.DownloadRecord {
	out := make([]types.DownloadRecord, 0, len(batch))
	for _, s := range batch {
		out = append(out, ToRecord(s))
	}
	return out
}

func displayName(s Status) string {
	if s.BitTorrent != nil && s.BitTorrent.Info != nil && s.BitTorrent.Info.Name != "" {
		return s.BitTorrent.Info.Name
	}
	if p := firstPath(s); p != "" {
		if base := path.Base(p); base != "." && base != "/" {
			return base
		}
	}
	return types.UnknownName
}

func saveDirectory(s Status) string {
	p := firstPath(s)
	if p == "" {
		return ""
	}
	dir := path.Dir(p)
	if dir == "." {
		return ""
	}
	return dir
}

// firstPath returns files[0].path with Windows separators normalized.
func firstPath(s Status) string {
	if len(s.Files) == 0 {
		return ""
	}
	return strings.ReplaceAll(s.Files[0].Path, "\\", "/")
}

func parseCount(v string) int64 {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
