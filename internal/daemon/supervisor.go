// Package daemon keeps a local aria2 process reachable.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/surge-downloader/riptide/internal/aria2"
	"github.com/surge-downloader/riptide/internal/engine/types"
	"github.com/surge-downloader/riptide/internal/utils"
)

// State is the supervisor's view of the daemon.
type State string

const (
	StateUnknown     State = "unknown"
	StateUnreachable State = "unreachable"
	StateStarting    State = "starting"
	StateReady       State = "ready"
	StateFailed      State = "failed"
)

// Prober answers a lightweight RPC call when the daemon is alive.
type Prober interface {
	GetVersion(ctx context.Context) (*aria2.Version, error)
}

// Config describes how to find and launch aria2.
type Config struct {
	Secret        string
	RPCPort       int
	Executable    string // explicit path tried first
	InstallDir    string // where a provisioned aria2c lives
	ReleaseURL    string
	AutoProvision bool
}

// Supervisor probes, locates, provisions and launches aria2. Liveness is
// never cached: every IsRunning call issues a fresh probe.
type Supervisor struct {
	cfg   Config
	probe Prober

	// ProbeInterval and MaxProbes bound the readiness wait after a spawn.
	ProbeInterval time.Duration
	MaxProbes     int

	// AllowProvision permits fetching a release archive when no executable
	// is found. It defaults to true only on Windows.
	AllowProvision bool

	provisioner *Provisioner
	spawn       func(path string, args []string) error
	verify      func(ctx context.Context, path string) error
	lookPath    func(file string) (string, error)

	startMu sync.Mutex // serializes EnsureRunning

	stateMu  sync.RWMutex
	state    State
	onChange func(State)
}

// New creates a supervisor. probe is normally an *aria2.Client.
func New(cfg Config, probe Prober) *Supervisor {
	if cfg.RPCPort == 0 {
		cfg.RPCPort = types.DefaultRPCPort
	}
	return &Supervisor{
		cfg:            cfg,
		probe:          probe,
		ProbeInterval:  types.StartProbeInterval,
		MaxProbes:      types.MaxStartProbes,
		AllowProvision: cfg.AutoProvision && runtime.GOOS == "windows",
		provisioner:    NewProvisioner(cfg.ReleaseURL, cfg.InstallDir),
		spawn:          spawnDetached,
		verify:         verifyExecutable,
		lookPath:       defaultLookPath,
		state:          StateUnknown,
	}
}

// OnStateChange registers fn to be called after every state transition.
func (s *Supervisor) OnStateChange(fn func(State)) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.onChange = fn
}

// State returns the last observed state.
func (s *Supervisor) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Supervisor) setState(next State) {
	s.stateMu.Lock()
	prev := s.state
	s.state = next
	fn := s.onChange
	s.stateMu.Unlock()

	if prev != next {
		utils.Debug("daemon: %s -> %s", prev, next)
		if fn != nil {
			fn(next)
		}
	}
}

func (s *Supervisor) probeOnce(ctx context.Context) bool {
	_, err := s.probe.GetVersion(ctx)
	return err == nil
}

// IsRunning probes the daemon once.
func (s *Supervisor) IsRunning(ctx context.Context) bool {
	if s.probeOnce(ctx) {
		s.setState(StateReady)
		return true
	}
	if s.State() != StateStarting {
		s.setState(StateUnreachable)
	}
	return false
}

// EnsureRunning returns nil once the daemon answers. Otherwise it locates
// or provisions aria2c, spawns it detached and waits for at most MaxProbes
// probes. A failure leaves the supervisor in StateFailed; direct transfers
// remain usable.
func (s *Supervisor) EnsureRunning(ctx context.Context, downloadDir string) error {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if s.IsRunning(ctx) {
		return nil
	}
	s.setState(StateStarting)

	path, err := s.locate(ctx)
	if errors.Is(err, ErrNoExecutable) && s.AllowProvision {
		utils.Info("aria2c not found, provisioning from %s", s.cfg.ReleaseURL)
		path, err = s.provisioner.Provision(ctx)
	}
	if err != nil {
		s.setState(StateFailed)
		return err
	}

	args := LaunchArgs(s.cfg.Secret, s.cfg.RPCPort, downloadDir)
	utils.Debug("daemon: spawning %s", path)
	if err := s.spawn(path, args); err != nil {
		s.setState(StateFailed)
		return fmt.Errorf("spawn %s: %w", path, err)
	}

	for attempt := 1; attempt <= s.MaxProbes; attempt++ {
		select {
		case <-ctx.Done():
			s.setState(StateFailed)
			return ctx.Err()
		case <-time.After(s.ProbeInterval):
		}

		if s.probeOnce(ctx) {
			utils.Info("aria2 reachable after %d probe(s)", attempt)
			s.setState(StateReady)
			return nil
		}
	}

	s.setState(StateFailed)
	return ErrStartTimeout
}

// PortFromURL extracts the port of an RPC endpoint, defaulting to 6800.
func PortFromURL(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return types.DefaultRPCPort
	}
	port, err := strconv.Atoi(u.Port())
	if err != nil || port <= 0 {
		return types.DefaultRPCPort
	}
	return port
}
