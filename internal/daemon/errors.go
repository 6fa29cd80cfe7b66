package daemon

import (
	"errors"
	"fmt"
)

var (
	// ErrStartTimeout means the daemon was spawned but never answered a probe.
	ErrStartTimeout = errors.New("aria2 did not become reachable after start")
	// ErrNoExecutable means no candidate path held a working aria2c and
	// provisioning was not permitted.
	ErrNoExecutable = errors.New("aria2c executable not found")
	// ErrMemberMissing means the release archive had no aria2c executable.
	ErrMemberMissing = errors.New("archive has no aria2c executable")
)

// ProvisioningError reports which provisioning step failed.
type ProvisioningError struct {
	Step string // prepare, lock, fetch, verify, extract
	Err  error
}

func (e *ProvisioningError) Error() string {
	return fmt.Sprintf("provision aria2 (%s): %v", e.Step, e.Err)
}

func (e *ProvisioningError) Unwrap() error {
	return e.Err
}
