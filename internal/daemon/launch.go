package daemon

import (
	"os/exec"
	"strconv"

	"github.com/surge-downloader/riptide/internal/engine/types"
)

// LaunchArgs is the fixed aria2c command line. The listen port is only
// passed when it differs from aria2's default.
func LaunchArgs(secret string, port int, downloadDir string) []string {
	args := []string{
		"--enable-rpc",
		"--rpc-listen-all",
		"--rpc-secret=" + secret,
		"--rpc-allow-origin-all",
		"--dir=" + downloadDir,
		"--continue=true",
		"--max-connection-per-server=16",
		"--min-split-size=1M",
		"--split=16",
		"--daemon=true",
		"--enable-dht=true",
		"--bt-enable-lpd=true",
		"--bt-max-peers=50",
		"--seed-ratio=0.1",
		"--bt-detach-seed-only=true",
	}
	if port != 0 && port != types.DefaultRPCPort {
		args = append(args, "--rpc-listen-port="+strconv.Itoa(port))
	}
	return args
}

// spawnDetached starts path in its own process group and forgets it.
func spawnDetached(path string, args []string) error {
	cmd := exec.Command(path, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
