package logger

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
)

// RollbarLogger пишет в stdout и дублирует warn/error в Rollbar
type RollbarLogger struct {
	std *StdLogger
}

var _ Logger = (*RollbarLogger)(nil)

type RollbarOptions struct {
	Token       string
	Environment string
	ServerHost  string
	CodeVersion string
}

func NewRollbarLogger(std *StdLogger, opts RollbarOptions) *RollbarLogger {
	rollbar.SetToken(opts.Token)
	rollbar.SetEnvironment(opts.Environment)
	rollbar.SetServerHost(opts.ServerHost)
	rollbar.SetCodeVersion(opts.CodeVersion)
	return &RollbarLogger{std: std}
}

func (l *RollbarLogger) Debugf(format string, args ...interface{}) {
	l.std.Debugf(format, args...)
}

func (l *RollbarLogger) Infof(format string, args ...interface{}) {
	l.std.Infof(format, args...)
}

func (l *RollbarLogger) Warnf(format string, args ...interface{}) {
	rollbar.Warning(fmt.Sprintf(format, args...))
	l.std.Warnf(format, args...)
}

func (l *RollbarLogger) Errorf(format string, args ...interface{}) {
	rollbar.Error(fmt.Errorf(format, args...))
	l.std.Errorf(format, args...)
}

// Close дожидается отправки накопившихся событий
func (l *RollbarLogger) Close() {
	rollbar.Wait()
}
