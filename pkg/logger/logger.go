package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the process-wide logger. It defaults to a no-op logger so packages
// can log before Init runs (tests, tools).
var Log = zap.NewNop()

// Init configures the global logger. The level argument wins over the
// ATELIER_LOG_LEVEL environment variable; an empty level falls back to it.
// ATELIER_LOG_SINK=file:/path/to/log redirects output to a file.
func Init(level string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("ATELIER_LOG_LEVEL")))
	}
	var zl zapcore.Level
	switch lvl {
	case "debug":
		zl = zapcore.DebugLevel
	case "warn", "warning":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	default:
		zl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zl)
	if sink := os.Getenv("ATELIER_LOG_SINK"); strings.HasPrefix(sink, "file:") {
		cfg.OutputPaths = []string{strings.TrimPrefix(sink, "file:")}
	}
	l, err := cfg.Build()
	if err != nil {
		// keep a usable logger rather than dying during startup
		l = zap.NewExample()
	}
	Log = l
}

// Sync flushes buffered log entries. Safe to call on shutdown paths.
func Sync() {
	_ = Log.Sync()
}
