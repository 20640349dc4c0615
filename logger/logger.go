package logger

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level = zerolog.Level

const (
	LevelDebug = zerolog.DebugLevel
	LevelInfo  = zerolog.InfoLevel
	LevelWarn  = zerolog.WarnLevel
	LevelError = zerolog.ErrorLevel
)

type Fields map[string]interface{}

var (
	stdMu        sync.RWMutex
	std          *Logger
	colorEnabled bool
)

// Logger wraps a zerolog.Logger with the Fields-based call style used across
// the router, middleware and server packages.
type Logger struct {
	Z zerolog.Logger
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level. Unknown
// or empty strings give LevelInfo.
func ParseLevel(s string) Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(s)))
	if err != nil || lvl == zerolog.NoLevel {
		return LevelInfo
	}
	return lvl
}

func wrap(color bool, s, code string) string {
	if !color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

// NewConsole creates a ConsoleWriter-backed logger with short level codes and
// a "3:04PM" timestamp.
func NewConsole(out io.Writer, level Level, color bool) *Logger {
	cw := zerolog.ConsoleWriter{Out: out, TimeFormat: "3:04PM", NoColor: !color}
	colorEnabled = color

	cw.FormatLevel = func(i interface{}) string {
		var lvl zerolog.Level
		switch v := i.(type) {
		case string:
			l, err := zerolog.ParseLevel(v)
			if err != nil {
				return ""
			}
			lvl = l
		case zerolog.Level:
			lvl = v
		default:
			return ""
		}
		switch lvl {
		case zerolog.DebugLevel:
			return wrap(color, "DBG", "36")
		case zerolog.InfoLevel:
			return wrap(color, "INF", "32")
		case zerolog.WarnLevel:
			return wrap(color, "WRN", "33")
		case zerolog.ErrorLevel:
			return wrap(color, "ERR", "31")
		default:
			return ""
		}
	}
	cw.FormatTimestamp = func(i interface{}) string {
		switch v := i.(type) {
		case time.Time:
			return wrap(color, v.Format("3:04PM"), "2")
		case string:
			return wrap(color, v, "2")
		default:
			return ""
		}
	}

	return &Logger{Z: zerolog.New(cw).With().Timestamp().Logger().Level(level)}
}

// NewJSON writes plain zerolog JSON lines, for tests and log shipping.
func NewJSON(out io.Writer, level Level) *Logger {
	return &Logger{Z: zerolog.New(out).With().Timestamp().Logger().Level(level)}
}

// NewNop returns a Logger that discards everything.
func NewNop() *Logger {
	return &Logger{Z: zerolog.Nop()}
}

// Colorize wraps s in an SGR color code when the console logger has colors on.
func Colorize(s string, code string) string {
	return wrap(colorEnabled, s, code)
}

// SetStd replaces the logger used by the package-level functions. nil
// installs a no-op logger.
func SetStd(l *Logger) {
	if l == nil {
		l = NewNop()
	}
	stdMu.Lock()
	std = l
	stdMu.Unlock()
}

// Std returns the package logger, creating a colored console logger on
// first use.
func Std() *Logger {
	stdMu.RLock()
	l := std
	stdMu.RUnlock()
	if l != nil {
		return l
	}
	stdMu.Lock()
	defer stdMu.Unlock()
	if std == nil {
		std = NewConsole(os.Stdout, LevelInfo, true)
	}
	return std
}

func Info(msg string, f Fields)  { Std().Info(msg, f) }
func Debug(msg string, f Fields) { Std().Debug(msg, f) }
func Warn(msg string, f Fields)  { Std().Warn(msg, f) }
func Error(msg string, f Fields) { Std().Error(msg, f) }

func emit(e *zerolog.Event, msg string, f Fields) {
	if f != nil {
		e = e.Fields(map[string]interface{}(f))
	}
	e.Msg(msg)
}

func (l *Logger) Info(msg string, f Fields)  { emit(l.Z.Info(), msg, f) }
func (l *Logger) Debug(msg string, f Fields) { emit(l.Z.Debug(), msg, f) }
func (l *Logger) Warn(msg string, f Fields)  { emit(l.Z.Warn(), msg, f) }
func (l *Logger) Error(msg string, f Fields) { emit(l.Z.Error(), msg, f) }

// With returns a child logger that adds f to every entry.
func (l *Logger) With(f Fields) *Logger {
	return &Logger{Z: l.Z.With().Fields(map[string]interface{}(f)).Logger()}
}
