package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the key/value logging surface used across services.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
	With(keysAndValues ...any) Logger
}

type ZapLogger struct {
	l *zap.SugaredLogger
}

// New builds a JSON production logger. level is one of debug|info|warn|error; empty means info.
func New(level string) *ZapLogger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if lvl, err := zapcore.ParseLevel(level); err == nil && level != "" {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	l, err := cfg.Build()
	if err != nil {
		l = zap.NewNop()
	}
	return &ZapLogger{l: l.Sugar()}
}

// Nop discards everything. Used by tests and as a default when no logger is wired.
func Nop() *ZapLogger {
	return &ZapLogger{l: zap.NewNop().Sugar()}
}

func (z *ZapLogger) Debug(msg string, kv ...any) { z.l.Debugw(msg, kv...) }
func (z *ZapLogger) Info(msg string, kv ...any)  { z.l.Infow(msg, kv...) }
func (z *ZapLogger) Warn(msg string, kv ...any)  { z.l.Warnw(msg, kv...) }
func (z *ZapLogger) Error(msg string, kv ...any) { z.l.Errorw(msg, kv...) }

func (z *ZapLogger) With(kv ...any) Logger {
	return &ZapLogger{l: z.l.With(kv...)}
}

func (z *ZapLogger) Sync() {
	_ = z.l.Sync()
}
