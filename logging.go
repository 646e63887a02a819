package identity

import "github.com/sirupsen/logrus"

type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger adapts a logrus entry to Logger
func NewLogrusLogger(entry *logrus.Entry) Logger {
	if entry == nil {
		entry = logrus.NewEntry(logrus.StandardLogger())
	}
	return logrusLogger{entry: entry}
}

func (l logrusLogger) Debug(format string, args ...any) { l.entry.Debugf(format, args...) }
func (l logrusLogger) Info(format string, args ...any)  { l.entry.Infof(format, args...) }
func (l logrusLogger) Warn(format string, args ...any)  { l.entry.Warnf(format, args...) }
func (l logrusLogger) Error(format string, args ...any) { l.entry.Errorf(format, args...) }
