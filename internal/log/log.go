package log

import (
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelError Level = "ERROR"
)

var (
	mu     sync.RWMutex
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	logger *zap.SugaredLogger
)

func init() {
	logger = build(false)
}

// Configure rebuilds the global logger. Production uses JSON output, otherwise
// a human-readable console encoder is used.
func Configure(production bool, l Level) {
	SetLevel(l)
	lg := build(production)

	mu.Lock()
	old := logger
	logger = lg
	mu.Unlock()

	_ = old.Sync()
}

func build(production bool) *zap.SugaredLogger {
	var cfg zap.Config
	if production {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = level
	cfg.OutputPaths = []string{"stderr"}

	lg, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return lg.Sugar()
}

// ParseLevel maps a config string ("debug", "info", "error") to a Level,
// defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		level.SetLevel(zapcore.DebugLevel)
	case LevelError:
		level.SetLevel(zapcore.ErrorLevel)
	default:
		level.SetLevel(zapcore.InfoLevel)
	}
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

func Debug(msg string, kv ...any) {
	current().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	current().Infow(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	current().Errorw(msg, extended...)
}

// Writer exposes the logger as an io.Writer at INFO level, for libraries that
// only accept a writer (HTTP access logs).
func Writer() io.Writer {
	return zapWriter{}
}

type zapWriter struct{}

func (zapWriter) Write(p []byte) (int, error) {
	current().Info(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// Sync flushes buffered log entries.
func Sync() {
	_ = current().Sync()
}
