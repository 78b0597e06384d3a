// Package logging provides config-driven categorized file logging for htbnerd.
// Logs are written to <data_dir>/logs/ as zap JSON lines, one file per day,
// with the category recorded as the logger name.
// Logging is controlled by logging.debug_mode in config.yaml - when false, no logs are written.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/system
type Category string

const (
	CategoryBoot    Category = "boot"    // Startup, config resolution
	CategoryConfig  Category = "config"  // Config file loading and overrides
	CategoryStore   Category = "store"   // Challenge record persistence
	CategoryScan    Category = "scan"    // Scan output ingestion
	CategorySuggest Category = "suggest" // Rule matching and suggestion derivation
	CategoryAI      Category = "ai"      // AI provider calls
	CategoryShell   Category = "shell"   // REPL command dispatch
)

// Options mirrors config.LoggingConfig to avoid an import cycle.
type Options struct {
	DebugMode  bool
	Level      string
	Categories map[string]bool
}

// Logger wraps a zap sugared logger bound to one category.
type Logger struct {
	category Category
	sugar    *zap.SugaredLogger
}

var (
	mu      sync.RWMutex
	root    = zap.NewNop()
	opts    Options
	logFile string
)

// Initialize sets up the logs directory under dataDir and builds the root logger.
// When debug mode is off every category logger is a no-op.
func Initialize(dataDir string, o Options) error {
	mu.Lock()
	defer mu.Unlock()

	opts = o
	if !o.DebugMode {
		root = zap.NewNop()
		logFile = ""
		return nil
	}
	if dataDir == "" {
		return fmt.Errorf("data directory required")
	}

	logsDir := filepath.Join(dataDir, "logs")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}
	logFile = filepath.Join(logsDir, time.Now().Format("2006-01-02")+"_htbnerd.log")

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parseLevel(o.Level))
	cfg.OutputPaths = []string{logFile}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.Sampling = nil

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	root = l

	root.Named(string(CategoryBoot)).Info("logging initialized",
		zap.String("file", logFile),
		zap.String("level", o.Level))
	return nil
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// File returns the active log file path, or "" when logging is off.
func File() string {
	mu.RLock()
	defer mu.RUnlock()
	return logFile
}

// IsCategoryEnabled returns whether a specific category is enabled
func IsCategoryEnabled(category Category) bool {
	mu.RLock()
	defer mu.RUnlock()

	if !opts.DebugMode {
		return false
	}
	if opts.Categories == nil {
		return true
	}
	enabled, exists := opts.Categories[string(category)]
	if !exists {
		return true
	}
	return enabled
}

// Named returns the structured zap logger for a category.
// Disabled categories get a no-op logger.
func Named(category Category) *zap.Logger {
	if !IsCategoryEnabled(category) {
		return zap.NewNop()
	}
	mu.RLock()
	defer mu.RUnlock()
	return root.Named(string(category))
}

// Get returns a printf-style logger for the given category.
func Get(category Category) *Logger {
	return &Logger{category: category, sugar: Named(category).Sugar()}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, args ...interface{}) { l.sugar.Debugf(format, args...) }

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) { l.sugar.Infof(format, args...) }

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) { l.sugar.Warnf(format, args...) }

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) { l.sugar.Errorf(format, args...) }

// Sync flushes buffered entries. Safe to call when logging is off.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	_ = root.Sync()
}

// =============================================================================
// CATEGORY HELPERS
// =============================================================================

func Boot(format string, args ...interface{}) { Get(CategoryBoot).Info(format, args...) }
func Config(format string, args ...interface{}) { Get(CategoryConfig).Info(format, args...) }
func Scan(format string, args ...interface{}) { Get(CategoryScan).Info(format, args...) }
func ScanDebug(format string, args ...interface{}) {
	Get(CategoryScan).Debug(format, args...)
}
func SuggestDebug(format string, args ...interface{}) {
	Get(CategorySuggest).Debug(format, args...)
}
func AI(format string, args ...interface{}) { Get(CategoryAI).Info(format, args...) }
func AIDebug(format string, args ...interface{}) { Get(CategoryAI).Debug(format, args...) }
func AIError(format string, args ...interface{}) { Get(CategoryAI).Error(format, args...) }
