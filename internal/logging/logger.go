package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"riffrate/internal/identity"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// Logger wraps zerolog for application logging
type Logger struct {
	logger zerolog.Logger
}

// Config holds logging configuration
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, text
	Output io.Writer
}

// New creates a logger from cfg. Unknown levels fall back to info and any
// format other than "text" produces JSON.
func New(cfg Config) *Logger {
	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "text" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: time.RFC3339}
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Str("service", "riffrate").
		Logger()

	return &Logger{logger: logger}
}

// Zerolog exposes the underlying logger for packages that take a zerolog.Logger.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) zerolog.Logger {
	return l.logger.With().Str("component", name).Logger()
}

// SetGlobalLogger sets the global logger instance
func SetGlobalLogger(logger *Logger) {
	log.Logger = logger.logger
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(err error, msg string) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(err error, msg string) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// WithRequestID stores a request id on ctx.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored on ctx, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithContext returns a logger carrying the request id and signed-in uid
// found on ctx.
func (l *Logger) WithContext(ctx context.Context) *zerolog.Logger {
	logger := contextFields(l.logger.With(), ctx).Logger()
	return &logger
}

// WithContext is the global-logger form of (*Logger).WithContext.
func WithContext(ctx context.Context) *zerolog.Logger {
	logger := contextFields(log.With(), ctx).Logger()
	return &logger
}

func contextFields(c zerolog.Context, ctx context.Context) zerolog.Context {
	if id := RequestID(ctx); id != "" {
		c = c.Str("request_id", id)
	}
	if who, ok := identity.FromContext(ctx); ok {
		c = c.Str("user_id", who.UID)
	}
	return c
}

// HTTPRequest logs the outcome of one HTTP request.
func (l *Logger) HTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	logger := l.WithContext(ctx)

	event := logger.Info()
	switch {
	case statusCode >= 500:
		event = logger.Error()
	case statusCode >= 400:
		event = logger.Warn()
	}

	event.
		Str("method", method).
		Str("path", path).
		Int("status_code", statusCode).
		Dur("duration_ms", duration).
		Msg("HTTP request completed")
}
