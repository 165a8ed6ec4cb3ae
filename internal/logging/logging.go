// Package logging provides the structured JSON slog handler used by the
// plughost daemon and its packages.
//
// The handler is backed by a zap core so that encoding and level gating
// stay on zap's allocation-free path while call sites use the standard
// log/slog API.
package logging

import (
	"io"
	"log/slog"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

// Option configures the handler returned by NewHandler.
type Option func(*settings)

type settings struct {
	level  slog.Level
	writer io.Writer
	name   string
}

// WithLevel sets the minimum level the handler emits. Defaults to Info.
func WithLevel(level slog.Level) Option {
	return func(s *settings) {
		s.level = level
	}
}

// WithWriter directs output to w instead of stderr.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		s.writer = w
	}
}

// WithName sets the logger name recorded on every entry.
func WithName(name string) Option {
	return func(s *settings) {
		s.name = name
	}
}

// NewHandler builds a JSON slog.Handler writing to stderr by default.
// Stdout stays clean for commands that emit data.
func NewHandler(opts ...Option) slog.Handler {
	s := &settings{
		level:  slog.LevelInfo,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.RFC3339NanoTimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(zapcore.AddSync(s.writer)),
		zapLevel(s.level),
	)

	handlerOpts := []zapslog.HandlerOption{
		zapslog.WithCaller(false),
	}
	if s.name != "" {
		handlerOpts = append(handlerOpts, zapslog.WithName(s.name))
	}
	return zapslog.NewHandler(core, handlerOpts...)
}

// zapLevel maps an slog level onto the zap core's level enabler.
func zapLevel(level slog.Level) zapcore.Level {
	switch {
	case level <= slog.LevelDebug:
		return zapcore.DebugLevel
	case level <= slog.LevelInfo:
		return zapcore.InfoLevel
	case level <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
