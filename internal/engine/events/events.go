package events

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

// Registry events. These are produced only by the registry while reconciling
// a poll batch, and are keyed by the slot the registry assigned.

// DownloadAddedMsg announces a daemon job seen for the first time.
type DownloadAddedMsg struct {
	Slot   int
	GID    string
	Name   string
	Record types.DownloadRecord
}

// DownloadUpdatedMsg carries fresh display state for a tracked job.
// Record.Progress is already clamped to [0,1].
type DownloadUpdatedMsg struct {
	Slot   int
	GID    string
	Name   string
	Record types.DownloadRecord
}

// DownloadCompleteMsg is emitted at most once per gid for the life of a registry.
type DownloadCompleteMsg struct {
	Slot int
	GID  string
	Name string
}

// DownloadErrorMsg signals that a tracked daemon job entered the error state.
// The slot is dropped from tracking after this message.
type DownloadErrorMsg struct {
	Slot int
	GID  string
	Name string
}

// Direct transfer events, produced by the worker pool.

// TransferQueuedMsg is sent when a direct transfer enters the pool.
type TransferQueuedMsg struct {
	TransferID string
	URL        string
	DestPath   string
	Staging    bool
}

// TransferProgressMsg reports a direct transfer's percentage.
// Percent is -1 when the server did not announce a length.
type TransferProgressMsg struct {
	TransferID string
	Percent    int
}

// TransferCompleteMsg signals that a direct transfer finished successfully
type TransferCompleteMsg struct {
	TransferID string
	DestPath   string
	Staging    bool
}

// TransferErrorMsg signals that a direct transfer or its staging step failed
type TransferErrorMsg struct {
	TransferID string
	DestPath   string
	Staging    bool
	Err        error
}

func (m TransferErrorMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		TransferID string `json:"TransferID"`
		DestPath   string `json:"DestPath,omitempty"`
		Staging    bool   `json:"Staging"`
		Err        string `json:"Err,omitempty"`
	}

	out := encoded{
		TransferID: m.TransferID,
		DestPath:   m.DestPath,
		Staging:    m.Staging,
	}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}

	return json.Marshal(out)
}

func (m *TransferErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		TransferID string          `json:"TransferID"`
		DestPath   string          `json:"DestPath"`
		Staging    bool            `json:"Staging"`
		Err        json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	m.TransferID = aux.TransferID
	m.DestPath = aux.DestPath
	m.Staging = aux.Staging
	m.Err = decodeErr(aux.Err)
	return nil
}

// Orchestration events.

// EntrySubmittedMsg reports that a magnet or metafile was handed to the daemon.
type EntrySubmittedMsg struct {
	Entry     types.Entry
	Kind      types.LinkKind
	GID       string
	Confirmed bool
}

// EntryFailedMsg reports a per-entry failure. Other entries are unaffected.
type EntryFailedMsg struct {
	Entry types.Entry
	Kind  types.LinkKind
	Err   error
}

func (m EntryFailedMsg) MarshalJSON() ([]byte, error) {
	type encoded struct {
		Entry types.Entry    `json:"Entry"`
		Kind  types.LinkKind `json:"Kind"`
		Err   string         `json:"Err,omitempty"`
	}

	out := encoded{Entry: m.Entry, Kind: m.Kind}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}
	return json.Marshal(out)
}

func (m *EntryFailedMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		Entry types.Entry     `json:"Entry"`
		Kind  types.LinkKind  `json:"Kind"`
		Err   json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Entry = aux.Entry
	m.Kind = aux.Kind
	m.Err = decodeErr(aux.Err)
	return nil
}

// PollErrorMsg is a non-fatal poll failure. The loop retries on its next tick.
type PollErrorMsg struct {
	Err error
}

func (m PollErrorMsg) MarshalJSON() ([]byte, error) {
	var out struct {
		Err string `json:"Err,omitempty"`
	}
	if m.Err != nil {
		out.Err = m.Err.Error()
	}
	return json.Marshal(out)
}

func (m *PollErrorMsg) UnmarshalJSON(data []byte) error {
	var aux struct {
		Err json.RawMessage `json:"Err"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Err = decodeErr(aux.Err)
	return nil
}

// DaemonStateMsg is sent whenever the supervisor settles on a new state.
type DaemonStateMsg struct {
	State string
}

// CleanupMsg reports how many finished results from earlier sessions were cleared.
type CleanupMsg struct {
	Removed int
}

func decodeErr(raw json.RawMessage) error {
	if len(raw) == 0 {
		return nil
	}

	// Most common case: server sends Err as a string.
	var errStr string
	if err := json.Unmarshal(raw, &errStr); err == nil {
		if errStr != "" {
			return errors.New(errStr)
		}
		return nil
	}

	// Backward/forward compatibility: accept non-string payloads (e.g. {}).
	s := string(raw)
	if s != "" && s != "null" {
		return errors.New(s)
	}
	return nil
}

// Kind returns the SSE event name for a message.
func Kind(msg any) string {
	switch msg.(type) {
	case DownloadAddedMsg:
		return "new"
	case DownloadUpdatedMsg:
		return "update"
	case DownloadCompleteMsg:
		return "completed"
	case DownloadErrorMsg:
		return "errored"
	case TransferQueuedMsg:
		return "transfer_queued"
	case TransferProgressMsg:
		return "transfer_progress"
	case TransferCompleteMsg:
		return "transfer_completed"
	case TransferErrorMsg:
		return "transfer_error"
	case EntrySubmittedMsg:
		return "entry_submitted"
	case EntryFailedMsg:
		return "entry_failed"
	case PollErrorMsg:
		return "poll_error"
	case DaemonStateMsg:
		return "daemon_state"
	case CleanupMsg:
		return "cleanup"
	default:
		return "message"
	}
}

func decodeAs[T any](data []byte) (any, error) {
	var m T
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

var decoders = map[string]func([]byte) (any, error){
	"new":                decodeAs[DownloadAddedMsg],
	"update":             decodeAs[DownloadUpdatedMsg],
	"completed":          decodeAs[DownloadCompleteMsg],
	"errored":            decodeAs[DownloadErrorMsg],
	"transfer_queued":    decodeAs[TransferQueuedMsg],
	"transfer_progress":  decodeAs[TransferProgressMsg],
	"transfer_completed": decodeAs[TransferCompleteMsg],
	"transfer_error":     decodeAs[TransferErrorMsg],
	"entry_submitted":    decodeAs[EntrySubmittedMsg],
	"entry_failed":       decodeAs[EntryFailedMsg],
	"poll_error":         decodeAs[PollErrorMsg],
	"daemon_state":       decodeAs[DaemonStateMsg],
	"cleanup":            decodeAs[CleanupMsg],
}

// Decode rebuilds a message from its SSE event name and JSON payload.
func Decode(kind string, data []byte) (any, error) {
	decode, ok := decoders[kind]
	if !ok {
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	return decode(data)
}
