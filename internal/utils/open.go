package utils

import (
	"os/exec"
	"runtime"
)

// openCommand returns the platform opener for a folder or file.
func openCommand(path string) *exec.Cmd {
	switch runtime.GOOS {
	case "windows":
		return exec.Command("explorer", path)
	case "darwin":
		return exec.Command("open", path)
	default:
		return exec.Command("xdg-open", path)
	}
}

// OpenFolder asks the desktop to show path. It does not wait for the opener.
func OpenFolder(path string) error {
	cmd := openCommand(path)
	if err := cmd.Start(); err != nil {
		return err
	}
	go func() { _ = cmd.Wait() }()
	return nil
}
