package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"sizefit-service/pkg/config"
)

// Logger wraps a logrus logger and the file it may own.
type Logger struct {
	entry *logrus.Logger
	file  *os.File
}

var (
	globalMu     sync.RWMutex
	globalLogger = &Logger{entry: logrus.StandardLogger()}
)

// NewLogger builds a logger from the log section of the config.
func NewLogger(cfg *config.Config) *Logger {
	l := logrus.New()
	out := &Logger{entry: l}
	if cfg == nil {
		return out
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Log.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.000"})
	}

	var w io.Writer = os.Stdout
	switch strings.ToLower(cfg.Log.Output) {
	case "stderr":
		w = os.Stderr
	case "file", "both":
		if cfg.Log.Filename != "" {
			if err := os.MkdirAll(filepath.Dir(cfg.Log.Filename), 0o755); err == nil {
				f, err := os.OpenFile(cfg.Log.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err == nil {
					out.file = f
					if strings.EqualFold(cfg.Log.Output, "both") {
						w = io.MultiWriter(os.Stdout, f)
					} else {
						w = f
					}
				} else {
					fmt.Fprintf(os.Stderr, "[logger] open log file %s: %v\n", cfg.Log.Filename, err)
				}
			}
		}
	}
	l.SetOutput(w)
	return out
}

// Close releases the log file if one was opened.
func (l *Logger) Close() {
	if l != nil && l.file != nil {
		_ = l.file.Close()
	}
}

// Logrus exposes the underlying logger, e.g. for gin's writers.
func (l *Logger) Logrus() *logrus.Logger {
	return l.entry
}

// SetGlobalLogger replaces the package level logger.
func SetGlobalLogger(l *Logger) {
	if l == nil {
		return
	}
	globalMu.Lock()
	globalLogger = l
	globalMu.Unlock()
}

// GetGlobalLogger returns the package level logger.
func GetGlobalLogger() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalLogger
}

func std() *logrus.Logger {
	return GetGlobalLogger().entry
}

func Debugf(format string, args ...interface{}) { std().Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std().Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std().Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std().Errorf(format, args...) }

// Debug logs msg with structured fields.
func Debug(msg string, fields ...map[string]interface{}) { withFields(fields).Debug(msg) }

// Info logs msg with structured fields.
func Info(msg string, fields ...map[string]interface{}) { withFields(fields).Info(msg) }

// Warn logs msg with structured fields.
func Warn(msg string, fields ...map[string]interface{}) { withFields(fields).Warn(msg) }

// Error logs msg with structured fields.
func Error(msg string, fields ...map[string]interface{}) { withFields(fields).Error(msg) }

// Fatal logs msg and exits.
func Fatal(msg string) { std().Fatal(msg) }

// WithJob returns an entry tagged with the job id.
func WithJob(jobID string) *logrus.Entry {
	return std().WithField("job_id", jobID)
}

func withFields(fields []map[string]interface{}) *logrus.Entry {
	e := logrus.NewEntry(std())
	for _, f := range fields {
		e = e.WithFields(logrus.Fields(f))
	}
	return e
}
