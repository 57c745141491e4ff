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
	mu     sync.RWMutex
	logger *zap.Logger
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	once   sync.Once
)

// initLogger builds the default JSON logger on stderr.
func initLogger() {
	once.Do(func() {
		cfg := zap.Config{
			Level:            level,
			Development:      false,
			Encoding:         "json",
			EncoderConfig:    zap.NewProductionEncoderConfig(),
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		}
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		mu.Lock()
		if logger == nil {
			logger = l
		}
		mu.Unlock()
	})
}

func current() *zap.Logger {
	initLogger()
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// SetLevel changes the minimum level of the default logger.
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

// ParseLevel maps a config string (debug, info, error) to a Level.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// SetLogger replaces the backing logger; tests use it with an observer core.
func SetLogger(l *zap.Logger) {
	initLogger()
	mu.Lock()
	logger = l
	mu.Unlock()
}

// Sync flushes buffered entries.
func Sync() {
	_ = current().Sync()
}

func Debug(msg string, kv ...any) {
	current().Debug(msg, fields(kv)...)
}

func Info(msg string, kv ...any) {
	current().Info(msg, fields(kv)...)
}

func Error(msg string, err error, kv ...any) {
	current().Error(msg, append([]zap.Field{zap.Error(err)}, fields(kv)...)...)
}

// fields turns key, value, key, value ... into zap fields. Non-string keys
// are skipped; a trailing odd value is ignored.
func fields(kv []any) []zap.Field {
	out := make([]zap.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, zap.Any(key, kv[i+1]))
	}
	return out
}
