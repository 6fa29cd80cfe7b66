package registry

import "strings"

// MetadataPrefix is what aria2 puts in front of a magnet download's name
// while it is still fetching the torrent metadata.
const MetadataPrefix = "[METADATA]"

// Normalize strips the metadata placeholder prefix and surrounding space.
// A name that normalizes to nothing is returned unchanged.
func Normalize(name string) string {
	n := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(name), MetadataPrefix))
	if n == "" {
		return name
	}
	return n
}

// IsPlaceholder reports whether name is a provisional metadata label that
// must not replace a concrete name already known for an id.
func IsPlaceholder(name string) bool {
	return strings.HasPrefix(strings.TrimSpace(name), MetadataPrefix)
}
