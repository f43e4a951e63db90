// Package logging provides the component loggers used across the service.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
)

// Fields carries structured key/value pairs attached to a log line.
type Fields map[string]interface{}

var (
	output = io.Writer(os.Stdout)
	level  = zerolog.InfoLevel
	root   = newZerolog("storefront")
)

func newZerolog(service string) zerolog.Logger {
	return zerolog.New(output).Level(level).With().Timestamp().Str("service", service).Logger()
}

// SetLevel changes the minimum level for loggers created afterwards and for
// the package-level helpers.
func SetLevel(name string) {
	parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || name == "" {
		parsed = zerolog.InfoLevel
	}
	level = parsed
	root = newZerolog("storefront")
}

// SetOutput redirects all loggers created afterwards. Used by tests.
func SetOutput(w io.Writer) {
	output = w
	root = newZerolog("storefront")
}

// LoggerV2 is a structured logger bound to one component.
type LoggerV2 struct {
	zl zerolog.Logger
}

// NewLoggerV2 creates a logger tagged with the given component name.
func NewLoggerV2(service string) *LoggerV2 {
	return &LoggerV2{zl: newZerolog(service)}
}

func (l *LoggerV2) Debug(msg string, fields ...Fields) {
	emit(l.zl.Debug(), msg, fields)
}

func (l *LoggerV2) Info(msg string, fields ...Fields) {
	emit(l.zl.Info(), msg, fields)
}

func (l *LoggerV2) Warn(msg string, fields ...Fields) {
	emit(l.zl.Warn(), msg, fields)
}

func (l *LoggerV2) Error(msg string, fields ...Fields) {
	emit(l.zl.Error(), msg, fields)
}

// Fatal logs and exits the process.
func (l *LoggerV2) Fatal(msg string, fields ...Fields) {
	emit(l.zl.WithLevel(zerolog.FatalLevel), msg, fields)
	os.Exit(1)
}

// Info logs through the package-level logger.
func Info(msg string, fields ...Fields) {
	emit(root.Info(), msg, fields)
}

// Infof logs a formatted message without fields.
func Infof(format string, args ...interface{}) {
	root.Info().Msg(fmt.Sprintf(format, args...))
}

func emit(ev *zerolog.Event, msg string, fields []Fields) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		for k, v := range f {
			if err, ok := v.(error); ok {
				ev = ev.Str(k, err.Error())
				continue
			}
			ev = ev.Interface(k, v)
		}
	}
	ev.Msg(msg)
}
