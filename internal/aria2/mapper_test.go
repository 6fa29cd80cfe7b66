package aria2

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

func TestMapState(t *testing.T) {
	tests := []struct {
		native string
		want   types.LifecycleState
	}{
		{"active", types.StateDownloading},
		{"waiting", types.StateQueued},
		{"paused", types.StatePaused},
		{"error", types.StateError},
		{"complete", types.StateUploading},
		{"removed", types.StateError},
		{"checking", types.LifecycleState("checking")},
		{"", types.LifecycleState("")},
	}
	for _, tt := range tests {
		t.Run(tt.native, func(t *testing.T) {
			assert.Equal(t, tt.want, MapState(tt.native))
		})
	}
}

func TestToRecord_ActiveQuarter(t *testing.T) {
	rec := ToRecord(Status{
		GID:             "2089b05ecca3d829",
		Status:          "active",
		TotalLength:     "1000",
		CompletedLength: "250",
		DownloadSpeed:   "4096",
		Files:           []File{{Path: "/downloads/show/ep01.mkv"}},
	})

	assert.Equal(t, types.StateDownloading, rec.State)
	assert.InDelta(t, 0.25, rec.Progress, 1e-9)
	assert.Equal(t, int64(1000), rec.TotalBytes)
	assert.Equal(t, int64(250), rec.CompletedBytes)
	assert.Equal(t, int64(4096), rec.DownloadSpeed)
	assert.Equal(t, "ep01.mkv", rec.DisplayName)
	assert.Equal(t, "/downloads/show", rec.SaveDirectory)
}

func TestToRecord_NamePreference(t *testing.T) {
	var withInfo Status
	require.NoError(t, json.Unmarshal([]byte(`{
		"gid": "a",
		"status": "active",
		"bittorrent": {"info": {"name": "Big Buck Bunny"}},
		"files": [{"path": "/dl/Big Buck Bunny/bbb.mp4"}]
	}`), &withInfo))

	tests := []struct {
		name   string
		status Status
		want   string
	}{
		{"metadata name wins", withInfo, "Big Buck Bunny"},
		{"file base name", Status{Files: []File{{Path: "/dl/a/b.iso"}}}, "b.iso"},
		{"windows separators", Status{Files: []File{{Path: `C:\dl\show\c.iso`}}}, "c.iso"},
		{"bittorrent without info", Status{BitTorrent: &BitTorrent{}, Files: []File{{Path: "/dl/x.bin"}}}, "x.bin"},
		{"metadata placeholder path", Status{Files: []File{{Path: "[METADATA]foo"}}}, "[METADATA]foo"},
		{"empty path", Status{Files: []File{{Path: ""}}}, types.UnknownName},
		{"no files", Status{}, types.UnknownName},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToRecord(tt.status).DisplayName)
		})
	}
}

func TestToRecord_Defaults(t *testing.T) {
	rec := ToRecord(Status{GID: "x", Status: "waiting", TotalLength: "garbage", CompletedLength: "-5"})

	assert.Equal(t, "x", rec.ID)
	assert.Equal(t, types.StateQueued, rec.State)
	assert.Zero(t, rec.TotalBytes)
	assert.Zero(t, rec.CompletedBytes)
	assert.Zero(t, rec.Progress)
	assert.Empty(t, rec.SaveDirectory)
	assert.Nil(t, rec.FollowedBy)
}

func TestToRecord_RawOvershootIsNotClamped(t *testing.T) {
	rec := ToRecord(Status{TotalLength: "100", CompletedLength: "120"})
	assert.InDelta(t, 1.2, rec.Progress, 1e-9)
	assert.Equal(t, 1.0, types.ClampProgress(rec.Progress))
	assert.Equal(t, 100, rec.Percent())
}

func TestToRecord_Deterministic(t *testing.T) {
	s := Status{
		GID:             "abc",
		Status:          "complete",
		TotalLength:     "10",
		CompletedLength: "10",
		FollowedBy:      []string{"def", "ghi"},
		Files:           []File{{Path: "/dl/meta.torrent"}},
	}

	first := ToRecord(s)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ToRecord(s))
	}
	assert.Equal(t, []string{"def", "ghi"}, first.FollowedBy)

	// The record must not alias the input slice
	s.FollowedBy[0] = "mutated"
	assert.Equal(t, "def", first.FollowedBy[0])
}

func TestToRecords_PreservesOrder(t *testing.T) {
	recs := ToRecords([]Status{{GID: "1"}, {GID: "2"}, {GID: "3"}})
	require.Len(t, recs, 3)
	assert.Equal(t, "1", recs[0].ID)
	assert.Equal(t, "3", recs[2].ID)
}
