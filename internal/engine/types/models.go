package types

// LifecycleState is the normalized state of a daemon-backed transfer.
// Daemon statuses without a mapping pass through unchanged, so the set is open.
type LifecycleState string

const (
	StateDownloading LifecycleState = "downloading"
	StateQueued      LifecycleState = "queued"
	StatePaused      LifecycleState = "paused"
	StateError       LifecycleState = "error"     // also covers daemon "removed"
	StateUploading   LifecycleState = "uploading" // complete, possibly seeding
)

// UnknownName is the display name used when the daemon reports neither
// torrent metadata nor a file path.
const UnknownName = "Unknown"

// DownloadRecord is a normalized snapshot of one daemon job.
// It is rebuilt on every poll and carries no identity beyond ID.
type DownloadRecord struct {
	ID             string         `json:"id"`
	DisplayName    string         `json:"display_name"`
	State          LifecycleState `json:"state"`
	Progress       float64        `json:"progress"` // Ratio, 0 when TotalBytes is 0
	TotalBytes     int64          `json:"total_bytes"`
	CompletedBytes int64          `json:"completed_bytes"`
	DownloadSpeed  int64          `json:"download_speed"` // bytes per second
	FollowedBy     []string       `json:"followed_by,omitempty"`
	SaveDirectory  string         `json:"save_directory"`
}

// Percent returns the progress as a whole percentage, truncated.
func (r DownloadRecord) Percent() int {
	return int(ClampProgress(r.Progress) * 100)
}

// ClampProgress bounds a progress ratio to [0,1].
func ClampProgress(p float64) float64 {
	if p != p || p < 0 { // NaN or negative
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// Entry is one link-resolver output: where to save, and what to fetch.
type Entry struct {
	Path string `json:"path"` // Relative to the configured folder
	URL  string `json:"url"`  // http(s) URL, .torrent URL, or magnet link
}

// LinkKind classifies an Entry by URL shape.
type LinkKind string

const (
	KindDirect   LinkKind = "direct"
	KindMagnet   LinkKind = "magnet"
	KindMetafile LinkKind = "torrent"
)

// SlotStatus is the presentation-facing view of a registry entry.
type SlotStatus struct {
	Slot      int            `json:"slot"`
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Completed bool           `json:"completed"`
	Record    DownloadRecord `json:"record"`
}

// TransferStatus represents the transient status of a direct HTTP transfer
type TransferStatus struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	DestPath string `json:"dest_path"`
	Staging  bool   `json:"staging"` // Fetching a .torrent metafile for the daemon
	Percent  int    `json:"percent"` // -1 when the total size is unknown
	Status   string `json:"status"`  // "queued", "downloading", "completed", "error"
	Error    string `json:"error,omitempty"`
}

// EntryResult reports what happened to one submitted entry.
type EntryResult struct {
	Entry     Entry    `json:"entry"`
	Kind      LinkKind `json:"kind"`
	ID        string   `json:"id,omitempty"` // Daemon gid or transfer id
	Confirmed bool     `json:"confirmed"`    // Daemon reported the gid back via tellStatus
	Error     string   `json:"error,omitempty"`
}

// Overview is everything a presentation layer needs to draw one frame.
type Overview struct {
	DaemonState string           `json:"daemon_state"`
	Slots       []SlotStatus     `json:"slots"`
	Transfers   []TransferStatus `json:"transfers"`
}
