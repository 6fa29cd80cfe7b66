package utils

import (
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// ExtractURLPath extracts the full path from a URL including the host
// Example: https://example.com/a/b/file.zip -> example.com/a/b
func ExtractURLPath(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	urlPath := strings.TrimPrefix(parsed.Path, "/")
	dir := filepath.Dir(urlPath)
	if dir == "." {
		return parsed.Host, nil
	}

	return filepath.Join(parsed.Host, dir), nil
}

// FileNameFromURL returns the last path segment of rawURL, unescaped.
// It returns "" when the URL has no usable file name.
func FileNameFromURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	name := path.Base(parsed.EscapedPath())
	if name == "." || name == "/" {
		return ""
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}
	return SanitizeFileName(name)
}

// SanitizeFileName strips path separators and characters that are invalid
// on common filesystems.
func SanitizeFileName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		if r < 0x20 {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)
	if name == "." || name == ".." {
		return ""
	}
	return name
}
