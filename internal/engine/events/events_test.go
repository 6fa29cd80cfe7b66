package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

// =============================================================================
// Error payload encoding
// =============================================================================

func TestTransferErrorMsg_JSONCarriesErrorText(t *testing.T) {
	msg := TransferErrorMsg{
		TransferID: "abc",
		DestPath:   "/tmp/x.torrent",
		Staging:    true,
		Err:        errors.New("connection refused"),
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Err":"connection refused"`)

	var decoded TransferErrorMsg
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "abc", decoded.TransferID)
	assert.True(t, decoded.Staging)
	require.Error(t, decoded.Err)
	assert.Equal(t, "connection refused", decoded.Err.Error())
}

func TestTransferErrorMsg_NilErrOmitted(t *testing.T) {
	data, err := json.Marshal(TransferErrorMsg{TransferID: "abc"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"Err"`)
}

func TestDecodeErr_NonStringPayload(t *testing.T) {
	var msg PollErrorMsg
	require.NoError(t, json.Unmarshal([]byte(`{"Err":{"code":1}}`), &msg))
	require.Error(t, msg.Err)
	assert.Equal(t, `{"code":1}`, msg.Err.Error())

	msg = PollErrorMsg{}
	require.NoError(t, json.Unmarshal([]byte(`{"Err":null}`), &msg))
	assert.NoError(t, msg.Err)
}

func TestEntryFailedMsg_JSON(t *testing.T) {
	msg := EntryFailedMsg{
		Entry: types.Entry{Path: "a", URL: "magnet:?xt=urn:btih:x"},
		Kind:  types.KindMagnet,
		Err:   errors.New("daemon unavailable"),
	}
	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded EntryFailedMsg
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, msg.Entry, decoded.Entry)
	assert.Equal(t, types.KindMagnet, decoded.Kind)
	assert.EqualError(t, decoded.Err, "daemon unavailable")
}

// =============================================================================
// Message Type Assertions (for interface compatibility)
// =============================================================================

func TestMessageTypes_AreDistinct(t *testing.T) {
	messages := []any{
		DownloadAddedMsg{GID: "new"},
		DownloadUpdatedMsg{GID: "update"},
		DownloadCompleteMsg{GID: "complete"},
		DownloadErrorMsg{GID: "error"},
		TransferQueuedMsg{TransferID: "queued"},
		TransferProgressMsg{TransferID: "progress"},
		TransferCompleteMsg{TransferID: "done"},
		TransferErrorMsg{TransferID: "failed"},
	}

	typeNames := make(map[string]bool)
	for _, msg := range messages {
		typeName := fmt.Sprintf("%T", msg)
		if typeNames[typeName] {
			t.Errorf("Duplicate type: %s", typeName)
		}
		typeNames[typeName] = true
	}

	if len(typeNames) != len(messages) {
		t.Errorf("Expected %d distinct types, got %d", len(messages), len(typeNames))
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		msg  any
		want string
	}{
		{DownloadAddedMsg{}, "new"},
		{DownloadUpdatedMsg{}, "update"},
		{DownloadCompleteMsg{}, "completed"},
		{DownloadErrorMsg{}, "errored"},
		{TransferProgressMsg{}, "transfer_progress"},
		{PollErrorMsg{}, "poll_error"},
		{DaemonStateMsg{}, "daemon_state"},
		{struct{}{}, "message"},
	}

	for _, tc := range tests {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, Kind(tc.msg))
		})
	}
}

// =============================================================================
// Channel Communication Tests
// =============================================================================

func TestDownloadCompleteMsg_ChannelCommunication(t *testing.T) {
	ch := make(chan any, 1)

	sent := DownloadCompleteMsg{Slot: 2, GID: "2089b05ecca3d829", Name: "ubuntu.iso"}
	ch <- sent

	received, ok := (<-ch).(DownloadCompleteMsg)
	require.True(t, ok)
	assert.Equal(t, sent, received)
}

func TestDecode_RoundTripsThroughKind(t *testing.T) {
	messages := []any{
		DownloadAddedMsg{Slot: 1, GID: "a", Name: "foo", Record: types.DownloadRecord{ID: "a", Progress: 0.5}},
		DownloadCompleteMsg{Slot: 1, GID: "a", Name: "foo"},
		TransferProgressMsg{TransferID: "t", Percent: 40},
		EntrySubmittedMsg{Entry: types.Entry{URL: "magnet:?xt=1"}, Kind: types.KindMagnet, GID: "g", Confirmed: true},
		DaemonStateMsg{State: "ready"},
		CleanupMsg{Removed: 3},
	}

	for _, msg := range messages {
		data, err := json.Marshal(msg)
		require.NoError(t, err)

		decoded, err := Decode(Kind(msg), data)
		require.NoError(t, err)
		assert.Equal(t, msg, decoded)
	}
}

func TestDecode_UnknownKind(t *testing.T) {
	_, err := Decode("bogus", []byte(`{}`))
	assert.Error(t, err)

	_, err = Decode("new", []byte(`not json`))
	assert.Error(t, err)
}
