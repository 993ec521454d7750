package logger

import (
	"fmt"
	"io"
	"log"
)

// Logger — уровневый логгер, общий для hub, обработчиков и сервиса чата
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

type StdLogger struct {
	std   *log.Logger
	debug bool
}

var _ Logger = (*StdLogger)(nil)

func NewStdLogger(std *log.Logger, debug bool) *StdLogger {
	if std == nil {
		std = log.Default()
	}
	return &StdLogger{std: std, debug: debug}
}

// Discard используется в тестах
func Discard() *StdLogger {
	return &StdLogger{std: log.New(io.Discard, "", 0)}
}

func (l *StdLogger) Debugf(format string, args ...interface{}) {
	if l.debug {
		l.output("DEBUG", format, args)
	}
}

func (l *StdLogger) Infof(format string, args ...interface{}) {
	l.output("INFO", format, args)
}

func (l *StdLogger) Warnf(format string, args ...interface{}) {
	l.output("WARN", format, args)
}

func (l *StdLogger) Errorf(format string, args ...interface{}) {
	l.output("ERROR", format, args)
}

func (l *StdLogger) output(level, format string, args []interface{}) {
	_ = l.std.Output(3, fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...)))
}
