package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

func TestParseInput_PositionalLinks(t *testing.T) {
	got, err := parseInput([]string{"https://example.com/a.iso", "  ", "magnet:?xt=urn:btih:abc"})
	if err != nil {
		t.Fatalf("parseInput: %v", err)
	}
	want := []types.Entry{
		{URL: "https://example.com/a.iso"},
		{URL: "magnet:?xt=urn:btih:abc"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseInput_BatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "links.JSON")
	body := `[{"url": "https://example.com/a.torrent", "path": "linux/"}, {"url": "https://example.com/b.bin", "path": ""}]`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := parseInput([]string{path})
	if err != nil {
		t.Fatalf("parseInput: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].Path != "linux/" || got[0].URL != "https://example.com/a.torrent" {
		t.Errorf("unexpected first entry: %+v", got[0])
	}
}

func TestParseInput_JSONOnlyWhenAlone(t *testing.T) {
	// Two arguments are always links, even if one looks like a batch file
	got, err := parseInput([]string{"a.json", "b"})
	if err != nil {
		t.Fatalf("parseInput: %v", err)
	}
	if len(got) != 2 || got[0].URL != "a.json" {
		t.Errorf("unexpected entries: %+v", got)
	}
}

func TestParseInput_BatchFileErrors(t *testing.T) {
	if _, err := parseInput([]string{filepath.Join(t.TempDir(), "missing.json")}); err == nil {
		t.Error("expected error for missing batch file")
	}

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"url": "not a list"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := parseInput([]string{path}); err == nil {
		t.Error("expected error for malformed batch file")
	}
}

func TestReadLinks(t *testing.T) {
	in := strings.NewReader("https://example.com/a\n# comment\n  magnet:?xt=urn:btih:x  \n\nhttps://ignored.example.com\n")
	got, err := readLinks(in)
	if err != nil {
		t.Fatalf("readLinks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d links, want 2: %+v", len(got), got)
	}
	if got[1].URL != "magnet:?xt=urn:btih:x" {
		t.Errorf("link not trimmed: %q", got[1].URL)
	}
}

func TestReadLinks_LongLine(t *testing.T) {
	long := "magnet:?xt=urn:btih:abc" + strings.Repeat("&tr=udp://tracker.example.com:80", 4000)
	got, err := readLinks(strings.NewReader(long + "\n"))
	if err != nil {
		t.Fatalf("readLinks: %v", err)
	}
	if len(got) != 1 || got[0].URL != long {
		t.Error("long magnet link was not read intact")
	}
}
