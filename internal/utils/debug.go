package utils

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const logPrefix = "riptide-"

var (
	logMu   sync.RWMutex
	logger  = zerolog.Nop()
	logFile *os.File
)

// ConfigureDebug opens a fresh timestamped log file in dir. Until it is
// called, every log call is discarded.
func ConfigureDebug(dir string) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return
	}

	name := logPrefix + time.Now().Format("20060102-150405.000") + ".log"
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}

	logMu.Lock()
	defer logMu.Unlock()
	if logFile != nil {
		_ = logFile.Close()
	}
	logFile = f
	logger = zerolog.New(f).With().Timestamp().Logger()
}

// SetOutput routes logs to w.
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	logger = zerolog.New(w).With().Timestamp().Logger()
}

// Logger returns the current logger for call sites that attach fields.
func Logger() *zerolog.Logger {
	logMu.RLock()
	defer logMu.RUnlock()
	l := logger
	return &l
}

// Debug writes a formatted debug message
func Debug(format string, args ...any) {
	Logger().Debug().Msgf(format, args...)
}

// Info writes a formatted info message
func Info(format string, args ...any) {
	Logger().Info().Msgf(format, args...)
}

// Warn writes a formatted warning
func Warn(format string, args ...any) {
	Logger().Warn().Msgf(format, args...)
}

// Error logs err alongside a formatted message.
func Error(err error, format string, args ...any) {
	Logger().Error().Err(err).Msgf(format, args...)
}

// CleanupLogs removes all but the newest keep log files from the directory
// of the active log file. keep <= 0 disables cleanup.
func CleanupLogs(keep int) {
	logMu.RLock()
	f := logFile
	logMu.RUnlock()
	if f == nil || keep <= 0 {
		return
	}
	removeOldLogs(filepath.Dir(f.Name()), keep)
}

func removeOldLogs(dir string, keep int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	var logs []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), logPrefix) || !strings.HasSuffix(e.Name(), ".log") {
			continue
		}
		logs = append(logs, e.Name())
	}
	if len(logs) <= keep {
		return
	}

	// Names embed the timestamp, so lexical order is chronological
	sort.Strings(logs)
	for _, name := range logs[:len(logs)-keep] {
		_ = os.Remove(filepath.Join(dir, name))
	}
}
