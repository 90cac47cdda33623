// Package logging wraps zerolog the way the teacher's internal/logging
// package does, generalized from request/job/video/worker-scoped fields to
// the score-capture pipeline's job/stage vocabulary.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps a zerolog.Logger.
type Logger struct {
	logger zerolog.Logger
}

// Config holds logging configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, file path
	TimeFormat string // RFC3339, RFC3339Nano, Unix, etc.
}

// NewLogger creates a new logger with the given configuration.
func NewLogger(cfg Config) (*Logger, error) {
	var output io.Writer

	switch cfg.Output {
	case "stdout", "":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		output = file
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	logger := zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()

	log.Logger = logger

	return &Logger{logger: logger}, nil
}

// Zerolog returns the underlying zerolog.Logger, for collaborators
// (internal/jobstore's Orchestrator) that take one directly rather than
// this package's wrapper.
func (l *Logger) Zerolog() zerolog.Logger { return l.logger }

// WithField adds a field to the logger.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithFields adds multiple fields to the logger.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	logger := l.logger.With()
	for k, v := range fields {
		logger = logger.Interface(k, v)
	}
	return &Logger{logger: logger.Logger()}
}

// WithError adds an error to the logger.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{logger: l.logger.With().Err(err).Logger()}
}

// WithRequestID adds a request ID to the logger.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{logger: l.logger.With().Str("request_id", requestID).Logger()}
}

// WithJobID adds a job ID to the logger.
func (l *Logger) WithJobID(jobID string) *Logger {
	return &Logger{logger: l.logger.With().Str("job_id", jobID).Logger()}
}

// WithStage adds the current pipeline stage name to the logger.
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{logger: l.logger.With().Str("stage", stage).Logger()}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }

// Debugf logs a formatted debug message.
func (l *Logger) Debugf(format string, args ...interface{}) { l.logger.Debug().Msgf(format, args...) }

// Info logs an info message.
func (l *Logger) Info(msg string) { l.logger.Info().Msg(msg) }

// Infof logs a formatted info message.
func (l *Logger) Infof(format string, args ...interface{}) { l.logger.Info().Msgf(format, args...) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string) { l.logger.Warn().Msg(msg) }

// Warnf logs a formatted warning message.
func (l *Logger) Warnf(format string, args ...interface{}) { l.logger.Warn().Msgf(format, args...) }

// Error logs an error message.
func (l *Logger) Error(msg string) { l.logger.Error().Msg(msg) }

// Errorf logs a formatted error message.
func (l *Logger) Errorf(format string, args ...interface{}) { l.logger.Error().Msgf(format, args...) }

// ErrorWithErr logs an error message with an error.
func (l *Logger) ErrorWithErr(msg string, err error) { l.logger.Error().Err(err).Msg(msg) }

// LogHTTPRequest logs HTTP request details.
func (l *Logger) LogHTTPRequest(method, path, clientIP string, statusCode int, duration time.Duration) {
	l.logger.Info().
		Str("method", method).
		Str("path", path).
		Str("client_ip", clientIP).
		Int("status_code", statusCode).
		Dur("duration_ms", duration).
		Msg("http request")
}

// LogJobEvent logs a job lifecycle event (created, started, failed, done).
func (l *Logger) LogJobEvent(jobID, event, status string, details map[string]interface{}) {
	evt := l.logger.Info().
		Str("job_id", jobID).
		Str("event", event).
		Str("status", status)

	for k, v := range details {
		evt = evt.Interface(k, v)
	}

	evt.Msg("job event")
}

// LogPipelineStage logs a stage boundary: name, progress reached, and
// elapsed time for that stage.
func (l *Logger) LogPipelineStage(jobID, stage string, progress float64, elapsed time.Duration) {
	l.logger.Info().
		Str("job_id", jobID).
		Str("stage", stage).
		Float64("progress", progress).
		Dur("elapsed_ms", elapsed).
		Msg("pipeline stage complete")
}

// LogSubprocess logs an external process invocation (ffmpeg, downloader,
// neural SR runner) and its outcome.
func (l *Logger) LogSubprocess(jobID, command string, err error, duration time.Duration) {
	evt := l.logger.Info()
	if err != nil {
		evt = l.logger.Warn().Err(err)
	}
	evt.
		Str("job_id", jobID).
		Str("command", command).
		Dur("duration_ms", duration).
		Msg("subprocess invocation")
}

// LogAccelSelection logs the Runtime Acceleration Probe's chosen paths.
func (l *Logger) LogAccelSelection(resizeBackend string, decodeMode string) {
	l.logger.Info().
		Str("resize_backend", resizeBackend).
		Str("decode_mode", decodeMode).
		Msg("runtime acceleration selected")
}

// NewDefaultLogger creates a logger with default configuration.
func NewDefaultLogger() (*Logger, error) {
	return NewLogger(Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
}

// NewConsoleLogger creates a logger with console output for development.
func NewConsoleLogger() (*Logger, error) {
	return NewLogger(Config{
		Level:      "debug",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
}
