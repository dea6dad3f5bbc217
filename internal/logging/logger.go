// Package logging provides structured logging for the collector CLI.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger wraps zerolog with the console format used across the CLI.
type Logger struct {
	zlog   zerolog.Logger
	closer io.Closer // rotating file, if any
}

// NewLogger creates a logger writing human-readable lines to w.
func NewLogger(w io.Writer) *Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}

	return &Logger{
		zlog: zerolog.New(output).With().Timestamp().Logger(),
	}
}

// NewDefaultCLILogger creates a logger on stdout (stderr is reserved for progress bars).
func NewDefaultCLILogger() *Logger {
	return NewLogger(os.Stdout)
}

// NewCLILogger creates a stdout logger that also appends JSON lines to a
// rotating log file when logFile is non-empty.
func NewCLILogger(logFile string) *Logger {
	if logFile == "" {
		return NewDefaultCLILogger()
	}

	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: "15:04:05",
	}
	file := NewFileWriter(FileConfig{Path: logFile})
	output := zerolog.MultiLevelWriter(console, file)

	return &Logger{
		zlog:   zerolog.New(output).With().Timestamp().Logger(),
		closer: file,
	}
}

// Nop returns a logger that discards everything. Used as the default when a
// component is constructed without one.
func Nop() *Logger {
	return &Logger{zlog: zerolog.Nop()}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger with additional context.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Named returns a child logger tagged with a component name.
func (l *Logger) Named(component string) *Logger {
	return &Logger{
		zlog: l.zlog.With().Str("component", component).Logger(),
	}
}

// Close releases the log file, if one was opened.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
