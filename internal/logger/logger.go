package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger. It is usable before Init with logrus defaults.
var Log = logrus.New()

// Init configures the level and formatter: JSON in production, text otherwise.
func Init(level, env string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)

	if env == "production" {
		Log.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	SetTextFormatter()
}

// SetTextFormatter switches to human-readable output.
func SetTextFormatter() {
	Log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

// SetOutput redirects the logger, mostly for tests.
func SetOutput(w io.Writer) {
	Log.SetOutput(w)
}
