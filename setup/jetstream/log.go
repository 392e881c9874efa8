package jetstream

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/sirupsen/logrus"
)

var _ server.Logger = &LogAdapter{}

// LogAdapter sends the in-process NATS server's logs to logrus. Notices are
// logged at debug level since the server is an implementation detail.
type LogAdapter struct {
	entry *logrus.Entry
}

func NewLogAdapter() *LogAdapter {
	return &LogAdapter{
		entry: logrus.StandardLogger().WithField("component", "nats"),
	}
}

func (l *LogAdapter) Noticef(format string, v ...interface{}) { l.entry.Debugf(format, v...) }
func (l *LogAdapter) Warnf(format string, v ...interface{})   { l.entry.Warnf(format, v...) }
func (l *LogAdapter) Errorf(format string, v ...interface{})  { l.entry.Errorf(format, v...) }
func (l *LogAdapter) Debugf(format string, v ...interface{})  { l.entry.Debugf(format, v...) }
func (l *LogAdapter) Tracef(format string, v ...interface{})  { l.entry.Tracef(format, v...) }

func (l *LogAdapter) Fatalf(format string, v ...interface{}) {
	sentry.CaptureException(fmt.Errorf(format, v...))
	l.entry.Fatalf(format, v...)
}
