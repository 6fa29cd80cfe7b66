package daemon

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

func defaultLookPath(file string) (string, error) {
	return exec.LookPath(file)
}

// candidates returns executable locations in search order, without duplicates.
func (s *Supervisor) candidates() []string {
	var list []string
	if s.cfg.Executable != "" {
		list = append(list, s.cfg.Executable)
	}
	if p, err := s.lookPath("aria2c"); err == nil {
		list = append(list, p)
	}
	list = append(list, "aria2c.exe", "./aria2c.exe", "./aria2/aria2c.exe")
	if exe, err := os.Executable(); err == nil {
		list = append(list, filepath.Join(filepath.Dir(exe), ExecutableName))
	}
	if s.cfg.InstallDir != "" {
		list = append(list, filepath.Join(s.cfg.InstallDir, ExecutableName))
	}

	seen := make(map[string]bool, len(list))
	out := list[:0]
	for _, c := range list {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// locate returns the first candidate that answers --version.
func (s *Supervisor) locate(ctx context.Context) (string, error) {
	for _, c := range s.candidates() {
		if err := s.verify(ctx, c); err == nil {
			return c, nil
		}
	}
	return "", ErrNoExecutable
}

// verifyExecutable runs `path --version` with a short deadline.
func verifyExecutable(ctx context.Context, path string) error {
	ctx, cancel := context.WithTimeout(ctx, types.VerifyTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "--version")
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	return cmd.Run()
}
