package luckypick

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger defines the interface for logging operations
type Logger interface {
	Info(msg string, args ...any)
	Error(msg string, args ...any)
	Debug(msg string, args ...any)
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
	File   string `mapstructure:"file"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() *LogConfig {
	return &LogConfig{
		Level:  DefaultLogLevel,
		Format: DefaultLogFormat,
	}
}

// DefaultLogger implements Logger on top of logrus
type DefaultLogger struct {
	entry *logrus.Entry
	file  *os.File // set when logging to cfg.File
}

// NewDefaultLogger creates a text logger at info level writing to stderr
func NewDefaultLogger() *DefaultLogger {
	return NewLogger(DefaultLogConfig(), nil)
}

// NewLogger builds a logger from config. A nil writer means stderr, or the
// configured file when one is set.
func NewLogger(cfg *LogConfig, w io.Writer) *DefaultLogger {
	if cfg == nil {
		cfg = DefaultLogConfig()
	}

	l := logrus.New()
	l.SetLevel(parseLogLevel(cfg.Level))

	switch strings.ToLower(cfg.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	var file *os.File
	switch {
	case w != nil:
		l.SetOutput(w)
	case cfg.File != "":
		f, err := os.OpenFile(cfg.File, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			l.SetOutput(os.Stderr)
			l.Errorf("failed to open log file %s, falling back to stderr: %v", cfg.File, err)
		} else {
			l.SetOutput(f)
			file = f
		}
	default:
		l.SetOutput(os.Stderr)
	}

	return &DefaultLogger{entry: logrus.NewEntry(l).WithField("component", "luckypick"), file: file}
}

// WithField returns a logger that attaches the field to every entry. It
// shares the parent's output, so closing either closes both.
func (l *DefaultLogger) WithField(key string, value any) *DefaultLogger {
	return &DefaultLogger{entry: l.entry.WithField(key, value), file: l.file}
}

// Close closes the log file opened from cfg.File. Later entries go to stderr.
func (l *DefaultLogger) Close() error {
	if l.file == nil {
		return nil
	}
	l.entry.Logger.SetOutput(os.Stderr)
	return l.file.Close()
}

// Info logs an info message
func (l *DefaultLogger) Info(msg string, args ...any) { l.entry.Infof(msg, args...) }

// Error logs an error message
func (l *DefaultLogger) Error(msg string, args ...any) { l.entry.Errorf(msg, args...) }

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, args ...any) { l.entry.Debugf(msg, args...) }

// parseLogLevel falls back to info for unknown levels
func parseLogLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// SilentLogger implements Logger interface but does not output any logs
// This is useful for testing environments where log output is not desired
type SilentLogger struct{}

// NewSilentLogger creates a new silent logger instance
func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (l *SilentLogger) Info(msg string, args ...any)  {}
func (l *SilentLogger) Error(msg string, args ...any) {}
func (l *SilentLogger) Debug(msg string, args ...any) {}
