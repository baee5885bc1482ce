package orchestrator

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	pkgLoggerMu sync.RWMutex
	pkgLogger   *DebugLogger
)

func setPackageLogger(l *DebugLogger) {
	pkgLoggerMu.Lock()
	pkgLogger = l
	pkgLoggerMu.Unlock()
}

// debugLog writes to the logger of the most recently built Orchestrator,
// so the executor and aggregator can log without carrying one.
func debugLog(format string, args ...interface{}) {
	pkgLoggerMu.RLock()
	l := pkgLogger
	pkgLoggerMu.RUnlock()
	l.Log(format, args...)
}

// LogConfig controls where the debug log is written and how it rotates.
type LogConfig struct {
	// Path is the log file. Empty disables logging.
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultLogConfig logs to .orca/logs/orca-debug.log under repoPath.
func DefaultLogConfig(repoPath string) LogConfig {
	return LogConfig{
		Path:       filepath.Join(repoPath, ".orca", "logs", "orca-debug.log"),
		MaxSizeMB:  10,
		MaxBackups: 3,
		MaxAgeDays: 14,
	}
}

// DebugLogger writes timestamped lines to a rotating file. The zero value
// and a nil *DebugLogger discard everything.
type DebugLogger struct {
	mu  sync.Mutex
	out io.WriteCloser
}

// NewRotatingLogger opens the log described by cfg, creating its directory.
func NewRotatingLogger(cfg LogConfig) (*DebugLogger, error) {
	if cfg.Path == "" {
		return NopLogger(), nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	l := &DebugLogger{out: &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
	}}
	l.Log("=== Orca Debug Log Started at %s ===", time.Now().Format(time.RFC3339))
	return l, nil
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.out == nil {
		return
	}
	line := fmt.Sprintf("[%s] %s\n", time.Now().Format("15:04:05.000"), fmt.Sprintf(format, args...))

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, line)
}

func (l *DebugLogger) Close() error {
	if l == nil || l.out == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
