package types

import (
	"time"
)

// Size constants
const (
	KB = 1024
	MB = 1024 * KB
	GB = 1024 * MB

	// Megabyte as float for display calculations
	Megabyte = 1024.0 * 1024.0

	// IncompleteSuffix is appended to files while downloading
	IncompleteSuffix = ".part"
)

// Daemon RPC constants
const (
	DefaultRPCURL    = "http://localhost:6800/jsonrpc"
	DefaultRPCSecret = "aria2rpc"
	DefaultRPCPort   = 6800

	RPCRequestID   = "riptide"
	RPCMethodSpace = "aria2."
	RPCTimeout     = 10 * time.Second
)

// Daemon lifecycle constants
const (
	MaxStartProbes      = 15              // Liveness probes after a spawn attempt
	StartProbeInterval  = 1 * time.Second // Delay before each probe
	VerifyTimeout       = 5 * time.Second // `aria2c --version` check
	ReleaseFetchTimeout = 30 * time.Second
)

// Orchestration constants
const (
	PollInterval = 3 * time.Second

	StagingAttempts = 10
	StagingInterval = 200 * time.Millisecond

	ConfirmAttempts = 10
	ConfirmInterval = 1 * time.Second

	StoppedQueryLimit = 10
	CleanupQueryLimit = 50

	TransferBuffer           = 32 * KB
	ProgressEmitInterval     = 200 * time.Millisecond
	ProgressChannelBuffer    = 100
	DefaultMaxParallel       = 3
	DefaultLogRetentionCount = 5
)

// HTTP Client Tuning
const (
	DefaultIdleConnTimeout       = 90 * time.Second
	DefaultTLSHandshakeTimeout   = 10 * time.Second
	DefaultResponseHeaderTimeout = 15 * time.Second
	DialTimeout                  = 10 * time.Second
	KeepAliveDuration            = 30 * time.Second
)

// RuntimeConfig holds dynamic settings that can override defaults
type RuntimeConfig struct {
	FolderPath           string
	MaxParallelDownloads int
	UserAgent            string
	ProxyURL             string
	SkipTLSVerification  bool
}

// GetUserAgent returns the configured user agent or the default
func (r *RuntimeConfig) GetUserAgent() string {
	if r == nil || r.UserAgent == "" {
		return "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	}
	return r.UserAgent
}

// GetMaxParallelDownloads returns configured value or default
func (r *RuntimeConfig) GetMaxParallelDownloads() int {
	if r == nil || r.MaxParallelDownloads <= 0 {
		return DefaultMaxParallel
	}
	return r.MaxParallelDownloads
}

// GetFolderPath returns the configured download root, or "." when unset
func (r *RuntimeConfig) GetFolderPath() string {
	if r == nil || r.FolderPath == "" {
		return "."
	}
	return r.FolderPath
}
