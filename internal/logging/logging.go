// Package logging wraps github.com/rs/zerolog with the severity scheme
// of the original peapod tool, which has two levels zerolog lacks out
// of the box: "debuglow" (extra hex-dump detail below Debug) and
// "notice" (between Info and Warn). Grounded on maxtara-gonat/main.go's
// zerolog setup idiom.
package logging

import (
	"io"
	"log/syslog"
	"os"

	"github.com/rs/zerolog"
)

// The project has seven severities, two of which zerolog lacks, and one
// of the extras ("notice") sits strictly between two built-in levels with
// no integer room between them. So the whole scale is renumbered with
// spacing, and Logger below shadows zerolog.Logger's Debug/Info/Warn/
// Error methods to log at these values instead of zerolog's own.
const (
	DebugLowLevel zerolog.Level = 0
	DebugLevel    zerolog.Level = 10
	InfoLevel     zerolog.Level = 20
	NoticeLevel   zerolog.Level = 30
	WarnLevel     zerolog.Level = 40
	ErrorLevel    zerolog.Level = 50
	CriticalLevel zerolog.Level = 60
)

func init() {
	zerolog.LevelFieldMarshalFunc = func(l zerolog.Level) string {
		switch l {
		case DebugLowLevel:
			return "debuglow"
		case DebugLevel:
			return "debug"
		case InfoLevel:
			return "info"
		case NoticeLevel:
			return "notice"
		case WarnLevel:
			return "warn"
		case ErrorLevel:
			return "error"
		case CriticalLevel:
			return "critical"
		default:
			return l.String()
		}
	}
}

var logger = zerolog.New(io.Discard)

// Logger extends zerolog.Logger with the project's extra severities.
// Its Debug/Info/Warn/Error methods shadow the embedded zerolog.Logger's
// same-named methods so that every severity, built-in or not, is logged
// against the renumbered scale above rather than zerolog's own.
//
// The embedded Logger.Fatal and .Panic are intentionally not shadowed
// and must not be used: their exit/panic behavior is gated on
// zerolog's own FatalLevel/PanicLevel, which sit outside this scale.
// Log at Critical and exit explicitly instead.
type Logger struct {
	zerolog.Logger
}

// DebugLow logs at DebugLowLevel: frame hex dumps and other detail
// below ordinary Debug.
func (l Logger) DebugLow() *zerolog.Event { return l.WithLevel(DebugLowLevel) }

func (l Logger) Debug() *zerolog.Event { return l.WithLevel(DebugLevel) }

func (l Logger) Info() *zerolog.Event { return l.WithLevel(InfoLevel) }

// Notice logs at NoticeLevel: state-machine transitions and other
// operationally significant, non-error events.
func (l Logger) Notice() *zerolog.Event { return l.WithLevel(NoticeLevel) }

func (l Logger) Warn() *zerolog.Event { return l.WithLevel(WarnLevel) }

func (l Logger) Error() *zerolog.Event { return l.WithLevel(ErrorLevel) }

// Critical logs at CriticalLevel: conditions from which the process
// cannot recover, immediately before exit.
func (l Logger) Critical() *zerolog.Event { return l.WithLevel(CriticalLevel) }

// L returns the process-wide Logger configured by Init.
func L() Logger { return Logger{logger} }

// Options configures Init.
type Options struct {
	// Verbosity is the -v count (0..3); each step lowers the minimum
	// logged level, from Notice down to DebugLow.
	Verbosity int
	// LogFile, if non-empty, is opened for append and used instead of
	// stderr for the console writer.
	LogFile string
	// NoColor disables ANSI color in the console writer.
	NoColor bool
	// Syslog additionally (or, if Daemon, instead) sends records to syslog.
	Syslog bool
	// Daemon indicates the process has detached from its controlling
	// terminal, so console output is redirected to syslog only.
	Daemon bool
}

// minLevel returns the minimum logged level for a verbosity count,
// matching "args.level = LOG_NOTICE + args.level" from the original.
func minLevel(verbosity int) zerolog.Level {
	switch {
	case verbosity <= 0:
		return NoticeLevel
	case verbosity == 1:
		return InfoLevel
	case verbosity == 2:
		return DebugLevel
	default:
		return DebugLowLevel
	}
}

// Init configures the process-wide logger per opts. It must be called
// once at startup before L() is used.
func Init(opts Options) error {
	level := minLevel(opts.Verbosity)

	var w io.Writer
	switch {
	case opts.Daemon:
		sw, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_NOTICE, "peapod")
		if err != nil {
			return err
		}
		w = syslogWriter{sw}
	case opts.LogFile != "":
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		w = zerolog.ConsoleWriter{Out: f, NoColor: opts.NoColor}
	default:
		w = zerolog.ConsoleWriter{Out: os.Stderr, NoColor: opts.NoColor}
	}

	if opts.Syslog && !opts.Daemon {
		sw, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_NOTICE, "peapod")
		if err != nil {
			return err
		}
		w = zerolog.MultiLevelWriter(w, syslogWriter{sw})
	}

	logger = zerolog.New(w).Level(level).With().Timestamp().Caller().Logger()
	return nil
}

// syslogWriter adapts *syslog.Writer to io.Writer for zerolog.
type syslogWriter struct{ w *syslog.Writer }

func (s syslogWriter) Write(p []byte) (int, error) {
	if err := s.w.Notice(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}
