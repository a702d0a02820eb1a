package smartcoex

import (
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Logger is the logging interface used by every package of this module.
type Logger interface {
	Info(...interface{})
	Debug(...interface{})
	Error(...interface{})
	Warn(...interface{})

	Infof(string, ...interface{})
	Debugf(string, ...interface{})
	Errorf(string, ...interface{})
	Warnf(string, ...interface{})

	ChildLogger(tags map[string]interface{}) Logger
}

var (
	pkgLogger Logger
	pkgLogMu  sync.Mutex
)

// SetLogger replaces the package logger. Components pick it up when they are
// created, so call it first.
func SetLogger(l Logger) {
	pkgLogMu.Lock()
	defer pkgLogMu.Unlock()
	pkgLogger = l
}

// GetLogger returns the package logger, a logrus text logger on stderr unless
// SetLogger was called.
func GetLogger() Logger {
	pkgLogMu.Lock()
	defer pkgLogMu.Unlock()

	if pkgLogger == nil {
		pkgLogger = NewLogger(&logrus.Logger{
			Formatter: &logrus.TextFormatter{DisableTimestamp: true},
			Level:     logrus.InfoLevel,
			Out:       os.Stderr,
			Hooks:     make(logrus.LevelHooks),
		})
	}
	return pkgLogger
}

// SetLogLevel sets the level of the package logger, e.g. "debug". Only
// loggers built by NewLogger can be adjusted.
func SetLogLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}

	lg, ok := GetLogger().(*logrusLogger)
	if !ok {
		return errors.New("non-logrus logger, don't know how to set level")
	}
	lg.Logger.SetLevel(lvl)
	return nil
}

// NewLogger adapts a logrus logger, e.g. one writing to a rotated file.
func NewLogger(l *logrus.Logger) Logger {
	return &logrusLogger{logrus.NewEntry(l)}
}

type logrusLogger struct {
	*logrus.Entry
}

func (l *logrusLogger) ChildLogger(tags map[string]interface{}) Logger {
	return &logrusLogger{l.WithFields(tags)}
}
