package log

import (
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
	mu      sync.Mutex
	sugar   *zap.SugaredLogger
	levelAt = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// logger lazily builds the process-wide zap logger. Output goes to stderr
// in console encoding with RFC3339 timestamps.
func logger() *zap.SugaredLogger {
	mu.Lock()
	defer mu.Unlock()
	if sugar == nil {
		cfg := zap.NewProductionConfig()
		cfg.Level = levelAt
		cfg.Encoding = "console"
		cfg.OutputPaths = []string{"stderr"}
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
		l, err := cfg.Build(zap.AddCallerSkip(2))
		if err != nil {
			// zap only fails on invalid config; fall back to the example logger.
			l = zap.NewExample()
		}
		sugar = l.Sugar()
	}
	return sugar
}

// SetLevel adjusts the minimum level for all subsequent log calls.
func SetLevel(l Level) {
	switch l {
	case LevelDebug:
		levelAt.SetLevel(zapcore.DebugLevel)
	case LevelError:
		levelAt.SetLevel(zapcore.ErrorLevel)
	default:
		levelAt.SetLevel(zapcore.InfoLevel)
	}
}

func Debug(msg string, kv ...any) {
	logger().Debugw(msg, kv...)
}

func Info(msg string, kv ...any) {
	logger().Infow(msg, kv...)
}

// Error logs msg with the error prepended to the key-value list, matching
// call sites of the form Error("context", err, "key", value).
func Error(msg string, err error, kv ...any) {
	extended := append([]any{"err", err}, kv...)
	logger().Errorw(msg, extended...)
}

// Sync flushes buffered log entries. Safe to call on shutdown even if no
// logger was ever built.
func Sync() {
	mu.Lock()
	s := sugar
	mu.Unlock()
	if s != nil {
		_ = s.Sync()
	}
}
