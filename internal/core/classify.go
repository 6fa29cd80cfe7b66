package core

import (
	"net/url"
	"strings"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

const (
	magnetPrefix   = "magnet:?"
	metafileSuffix = ".torrent"
)

// Classify decides how a link is submitted. Magnet links go straight to the
// daemon, .torrent URLs are staged locally first, everything else is a
// direct transfer.
func Classify(link string) types.LinkKind {
	trimmed := strings.TrimSpace(link)
	if strings.HasPrefix(strings.ToLower(trimmed), magnetPrefix) {
		return types.KindMagnet
	}
	if strings.HasSuffix(strings.ToLower(trimmed), metafileSuffix) {
		return types.KindMetafile
	}
	if u, err := url.Parse(trimmed); err == nil && strings.HasSuffix(strings.ToLower(u.Path), metafileSuffix) {
		return types.KindMetafile
	}
	return types.KindDirect
}
