package observability

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger configures the standard logrus logger for env and returns it.
func NewLogger(env, level string) *logrus.Logger {
	log := logrus.StandardLogger()
	log.SetOutput(os.Stdout)

	if env == "dev" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		log.SetLevel(logrus.DebugLevel)
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
		log.SetLevel(logrus.InfoLevel)
	}

	if level != "" {
		if lvl, err := logrus.ParseLevel(level); err == nil {
			log.SetLevel(lvl)
		} else {
			log.WithField("level", level).Warn("unknown LOG_LEVEL, keeping default")
		}
	}

	log.AddHook(TraceHook{})
	return log
}
