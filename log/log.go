// Package log is a thin zerolog wrapper exposing the leveled, key-value
// logging helpers used across the node.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

var (
	log   zerolog.Logger
	level = LogLevelInfo

	// panicOnInvalidChars makes every log call panic if the message contains
	// invalid UTF-8. Useful in tests to catch binary data being logged.
	panicOnInvalidChars = os.Getenv("LOG_PANIC_ON_INVALIDCHARS") == "true"

	// logTestWriter is used by tests and benchmarks as output when Init is
	// called with logTestWriterName.
	logTestWriter     io.Writer
	logTestWriterName = "log_test_writer"
)

func init() {
	Init(LogLevelError, "stderr", nil)
}

// invalidCharChecker is a zerolog hook that panics on invalid UTF-8.
type invalidCharChecker struct{}

func (invalidCharChecker) Run(_ *zerolog.Event, _ zerolog.Level, msg string) {
	if !utf8.ValidString(msg) {
		panic(fmt.Sprintf("log message contains invalid chars: %q", msg))
	}
}

// errorLevelWriter duplicates warning and error records to a second writer.
type errorLevelWriter struct {
	io.Writer
	errorWriter io.Writer
}

func (w *errorLevelWriter) WriteLevel(l zerolog.Level, p []byte) (int, error) {
	if l >= zerolog.WarnLevel {
		if _, err := w.errorWriter.Write(p); err != nil {
			return 0, err
		}
	}
	return w.Write(p)
}

// Init configures the global logger. Output can be "stdout", "stderr",
// a file path or the test writer name. If errorOutput is not nil, warnings
// and errors are also written to it.
func Init(logLevel, output string, errorOutput io.Writer) {
	var out io.Writer
	switch output {
	case "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	case logTestWriterName:
		out = logTestWriter
	default:
		f, err := os.OpenFile(filepath.Clean(output), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o640)
		if err != nil {
			panic(fmt.Sprintf("cannot open log output %q: %v", output, err))
		}
		out = f
	}
	if out == os.Stdout || out == os.Stderr {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339Nano,
		}
	}
	if errorOutput != nil {
		out = &errorLevelWriter{Writer: out, errorWriter: errorOutput}
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	log = zerolog.New(out).With().Timestamp().Caller().Logger()
	// every public helper adds one frame
	zerolog.CallerSkipFrameCount = 3
	zerolog.CallerMarshalFunc = func(_ uintptr, file string, line int) string {
		return fmt.Sprintf("%s/%s:%d", filepath.Base(filepath.Dir(file)), filepath.Base(file), line)
	}
	if panicOnInvalidChars {
		log = log.Hook(invalidCharChecker{})
	}
	setLevel(logLevel)
	log.Info().Msgf("logger construction succeeded at level %s with output %s", level, output)
}

func setLevel(l string) {
	switch strings.ToLower(l) {
	case LogLevelDebug:
		log = log.Level(zerolog.DebugLevel)
	case LogLevelInfo:
		log = log.Level(zerolog.InfoLevel)
	case LogLevelWarn:
		log = log.Level(zerolog.WarnLevel)
	case LogLevelError:
		log = log.Level(zerolog.ErrorLevel)
	default:
		panic(fmt.Sprintf("invalid log level: %q", l))
	}
	level = strings.ToLower(l)
}

// Level returns the current log level.
func Level() string {
	return level
}

// Logger returns the underlying zerolog logger.
func Logger() *zerolog.Logger {
	return &log
}

func Debug(args ...any) {
	log.Debug().Msg(fmt.Sprint(args...))
}

func Info(args ...any) {
	log.Info().Msg(fmt.Sprint(args...))
}

func Warn(args ...any) {
	log.Warn().Msg(fmt.Sprint(args...))
}

func Error(args ...any) {
	log.Error().Msg(fmt.Sprint(args...))
}

func Fatal(args ...any) {
	log.Fatal().Msg(fmt.Sprint(args...))
}

func Debugf(template string, args ...any) {
	log.Debug().Msgf(template, args...)
}

func Infof(template string, args ...any) {
	log.Info().Msgf(template, args...)
}

func Warnf(template string, args ...any) {
	log.Warn().Msgf(template, args...)
}

func Errorf(template string, args ...any) {
	log.Error().Msgf(template, args...)
}

func Fatalf(template string, args ...any) {
	log.Fatal().Msgf(template, args...)
}

// Debugw logs a message with key-value pairs.
func Debugw(msg string, keyvalues ...any) {
	log.Debug().Fields(keyvalues).Msg(msg)
}

func Infow(msg string, keyvalues ...any) {
	log.Info().Fields(keyvalues).Msg(msg)
}

func Warnw(msg string, keyvalues ...any) {
	log.Warn().Fields(keyvalues).Msg(msg)
}

// Errorw logs an error together with a message and key-value pairs.
func Errorw(err error, msg string, keyvalues ...any) {
	log.Error().Err(err).Fields(keyvalues).Msg(msg)
}
