package utils

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

var Log = logrus.New()

// SetLogLevel maps a --loglevel value onto Log.
func SetLogLevel(level string) error {
	// We are not using logrus' trace and panic levels
	switch strings.ToLower(level) {
	case "debug":
		Log.SetLevel(logrus.DebugLevel)
	case "info":
		Log.SetLevel(logrus.InfoLevel)
	case "warning", "warn":
		Log.SetLevel(logrus.WarnLevel)
	case "error":
		Log.SetLevel(logrus.ErrorLevel)
	case "fatal":
		Log.SetLevel(logrus.FatalLevel)
	default:
		return fmt.Errorf("bad log level %q", level)
	}
	return nil
}

// Notifier forwards user-facing notifications to the log.
type Notifier struct {
	Log logrus.FieldLogger
}

func (n Notifier) Notify(level, message string) {
	l := n.Log
	if l == nil {
		l = Log
	}
	if level == "error" {
		l.Error(message)
		return
	}
	l.Info(message)
}
