package core

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"
	"github.com/stretchr/testify/require"

	"github.com/surge-downloader/riptide/internal/daemon"
)

// fakeDaemon reports a fixed liveness and counts restart attempts.
type fakeDaemon struct {
	up          atomic.Bool
	ensureCalls atomic.Int32
	ensureErr   error
}

func newFakeDaemon(up bool) *fakeDaemon {
	d := &fakeDaemon{}
	d.up.Store(up)
	return d
}

func (d *fakeDaemon) IsRunning(context.Context) bool { return d.up.Load() }

func (d *fakeDaemon) EnsureRunning(context.Context, string) error {
	d.ensureCalls.Add(1)
	return d.ensureErr
}

func (d *fakeDaemon) State() daemon.State {
	if d.up.Load() {
		return daemon.StateReady
	}
	return daemon.StateUnreachable
}

// sink collects published events.
type sink struct {
	mu   sync.Mutex
	msgs []any
}

func (s *sink) publish(msg any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
}

func (s *sink) all() []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.msgs...)
}

func ofType[T any](msgs []any) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// torrentBytes builds a minimal single-file metafile.
func torrentBytes(t *testing.T, name string) []byte {
	t.Helper()
	info := metainfo.Info{
		Name:        name,
		PieceLength: 16 * 1024,
		Length:      3,
		Pieces:      make([]byte, 20),
	}
	infoBytes, err := bencode.Marshal(info)
	require.NoError(t, err)

	data, err := bencode.Marshal(metainfo.MetaInfo{InfoBytes: infoBytes, Announce: "udp://tracker.example:1337"})
	require.NoError(t, err)
	return data
}
