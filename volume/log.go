package volume

import "github.com/sirupsen/logrus"

// LogLevel mirrors the archive format's leveled log callback.
type LogLevel int

const (
	LogLevelError LogLevel = iota
	LogLevelWarning
	LogLevelInfo
	LogLevelDebug
)

func (l LogLevel) logrusLevel() logrus.Level {
	switch l {
	case LogLevelError:
		return logrus.ErrorLevel
	case LogLevelWarning:
		return logrus.WarnLevel
	case LogLevelInfo:
		return logrus.InfoLevel
	default:
		return logrus.DebugLevel
	}
}

// Logger wraps a *logrus.Logger with the fixed "mount" field every entry
// from this package carries, so multiple mounts in one process stay
// distinguishable in shared output.
type Logger struct {
	entry *logrus.Entry
}

// NewLogger builds a Logger over an existing *logrus.Logger. Passing nil
// uses logrus.StandardLogger().
func NewLogger(base *logrus.Logger, name string) *Logger {
	if base == nil {
		base = logrus.StandardLogger()
	}
	return &Logger{entry: base.WithField("mount", name)}
}

func (l *Logger) log(level LogLevel, fields logrus.Fields, msg string) {
	if l == nil {
		l = NewLogger(nil, "fif")
	}
	l.entry.WithFields(fields).Log(level.logrusLevel(), msg)
}
