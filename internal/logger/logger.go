// Package logger wraps a process-wide zap logger.
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey struct{}

var (
	mu     sync.RWMutex
	global = &Logger{z: zap.NewNop()}
)

// Logger is a thin wrapper that takes a context on every call so request-scoped
// fields attached with WithContext are emitted automatically.
type Logger struct {
	z *zap.Logger
}

// Init replaces the global logger. level is one of debug, info, warn, error.
func Init(level string, asJSON bool) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("logger.Init: parse level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	if !asJSON {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	z, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return fmt.Errorf("logger.Init: build: %w", err)
	}

	mu.Lock()
	global = &Logger{z: z}
	mu.Unlock()
	return nil
}

// L returns the global logger.
func L() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Zap exposes the underlying zap logger for libraries that need it.
func (l *Logger) Zap() *zap.Logger { return l.z }

func (l *Logger) With(fields ...Field) *Logger {
	return &Logger{z: l.z.With(fields...)}
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.z.Debug(msg, append(fromContext(ctx), fields...)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.z.Info(msg, append(fromContext(ctx), fields...)...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.z.Warn(msg, append(fromContext(ctx), fields...)...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.z.Error(msg, append(fromContext(ctx), fields...)...)
}

func (l *Logger) Sync() error { return l.z.Sync() }

// WithContext returns a copy of ctx carrying fields that every log call made with it will include.
func WithContext(ctx context.Context, fields ...Field) context.Context {
	return context.WithValue(ctx, ctxKey{}, append(fromContext(ctx), fields...))
}

func fromContext(ctx context.Context) []Field {
	if ctx == nil {
		return nil
	}
	fields, _ := ctx.Value(ctxKey{}).([]Field)
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

func With(fields ...Field) *Logger { return L().With(fields...) }

func Debug(ctx context.Context, msg string, fields ...Field) { L().Debug(ctx, msg, fields...) }
func Info(ctx context.Context, msg string, fields ...Field)  { L().Info(ctx, msg, fields...) }
func Warn(ctx context.Context, msg string, fields ...Field)  { L().Warn(ctx, msg, fields...) }
func Error(ctx context.Context, msg string, fields ...Field) { L().Error(ctx, msg, fields...) }
