package logger

import (
	"fmt"
	"io"
	"os"
	"path"
	"runtime"
	"strings"

	formatter "github.com/antonfisher/nested-logrus-formatter"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Fields = logrus.Fields

// Config selects the log level and an optional rotating log file.
type Config struct {
	Level string
	File  string
	// Caller adds file:line of the log call to every entry.
	Caller bool
}

// New builds a logger writing to stderr and, when File is set, to a rotating file.
func New(cfg Config) (*logrus.Logger, error) {
	return newWithOutput(cfg, os.Stderr)
}

func newWithOutput(cfg Config, stderr io.Writer) (*logrus.Logger, error) {
	level := logrus.InfoLevel
	if cfg.Level != "" {
		parsed, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&formatter.Formatter{
		TimestampFormat: "02 Jan 06 - 15:04:05",
		HideKeys:        false,
		CallerFirst:     true,
		CustomCallerFormatter: func(f *runtime.Frame) string {
			s := strings.Split(f.Function, ".")
			funcName := s[len(s)-1]
			return fmt.Sprintf(" [%s:%d][%s()]", path.Base(f.File), f.Line, funcName)
		},
	})

	writers := []io.Writer{stderr}
	if cfg.File != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   cfg.File,
			LocalTime:  true,
			Compress:   true,
			MaxSize:    100,
			MaxAge:     7,
			MaxBackups: 3,
		})
	}
	l.SetOutput(io.MultiWriter(writers...))
	l.SetReportCaller(cfg.Caller)
	return l, nil
}

// Discard returns a logger that drops everything. Components use it when no logger is given.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// OrDiscard returns l, or a discard logger if l is nil, including a nil *logrus.Logger
// or *logrus.Entry stored in the interface.
func OrDiscard(l logrus.FieldLogger) logrus.FieldLogger {
	switch v := l.(type) {
	case nil:
		return Discard()
	case *logrus.Logger:
		if v == nil {
			return Discard()
		}
	case *logrus.Entry:
		if v == nil {
			return Discard()
		}
	}
	return l
}
