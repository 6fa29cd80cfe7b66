package cmd

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

// parseInput turns command line arguments into entries. A single argument
// ending in .json is read as a batch file of [{"url": ..., "path": ...}];
// anything else is a list of links saved at the folder root.
func parseInput(args []string) ([]types.Entry, error) {
	if len(args) == 1 && strings.HasSuffix(strings.ToLower(args[0]), ".json") {
		return readBatchFile(args[0])
	}

	entries := make([]types.Entry, 0, len(args))
	for _, a := range args {
		if link := strings.TrimSpace(a); link != "" {
			entries = append(entries, types.Entry{URL: link})
		}
	}
	return entries, nil
}

func readBatchFile(path string) ([]types.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}

	var entries []types.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}
	return entries, nil
}

// readLinks reads one link per line until EOF or the first empty line.
// Lines starting with # are skipped.
func readLinks(r io.Reader) ([]types.Entry, error) {
	var entries []types.Entry
	scanner := bufio.NewScanner(r)

	// Magnet links with many trackers exceed the 64KB default
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 0, 64*1024), maxCapacity)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		entries = append(entries, types.Entry{URL: line})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read links: %w", err)
	}
	return entries, nil
}
