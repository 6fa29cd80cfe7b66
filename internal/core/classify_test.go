package core

import (
	"testing"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		link string
		want types.LinkKind
	}{
		{"magnet:?xt=urn:btih:abc", types.KindMagnet},
		{"  MAGNET:?xt=urn:btih:abc", types.KindMagnet},
		{"https://example.com/ubuntu.torrent", types.KindMetafile},
		{"https://example.com/UBUNTU.TORRENT", types.KindMetafile},
		{"https://example.com/get/ubuntu.torrent?key=1", types.KindMetafile},
		{"https://example.com/ubuntu.iso", types.KindDirect},
		{"https://example.com/torrent", types.KindDirect},
		{"magnet:xt=no-question-mark", types.KindDirect},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			if got := Classify(tt.link); got != tt.want {
				t.Errorf("Classify(%q) = %q, want %q", tt.link, got, tt.want)
			}
		})
	}
}
