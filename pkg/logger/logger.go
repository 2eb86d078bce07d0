// Package logger provides a thin logr-shaped wrapper around zap so the rest
// of the broker never imports zap directly.
package logger

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log wraps a named logr.Logger.
type Log struct {
	logr.Logger
}

// New creates a logger appropriate for the given environment. In production
// mode output is JSON; in development mode it is a colorized console
// encoding. If logPath is non-empty, output goes to <logPath>/<name>.log
// instead of standard error.
func New(name, logPath string, production bool) (*Log, error) {
	var zc zap.Config
	if production {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zc.DisableCaller = true
	zc.DisableStacktrace = true

	if logPath != "" {
		if err := os.MkdirAll(logPath, fs.ModeDir); err != nil {
			return nil, err
		}
		zc.OutputPaths = []string{filepath.Join(logPath, fmt.Sprintf("%s.log", name))}
	}

	z, err := zc.Build()
	if err != nil {
		return nil, err
	}

	return &Log{Logger: zapr.NewLogger(z).WithName(name)}, nil
}

// NewSimple creates a logger without touching any configuration, useful
// before the configuration file itself has been loaded.
func NewSimple(name string) *Log {
	return &Log{Logger: zapr.NewLogger(zap.L().Named(name))}
}

// New derives a named sub-logger.
func (l *Log) New(name string) *Log {
	return &Log{Logger: l.WithName(name)}
}

// Info logs at the informational level.
func (l *Log) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.V(0).WithValues(keysAndValues...).Info(msg)
}

// Debug logs at the debug level.
func (l *Log) Debug(msg string, keysAndValues ...interface{}) {
	l.Logger.V(1).WithValues(keysAndValues...).Info(msg)
}

// Trace logs at the most verbose level.
func (l *Log) Trace(msg string, keysAndValues ...interface{}) {
	l.Logger.V(2).WithValues(keysAndValues...).Info(msg)
}

// Error logs an error with context.
func (l *Log) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(err, msg, keysAndValues...)
}
