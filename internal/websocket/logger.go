package websocket

import (
	"io"

	"github.com/sirupsen/logrus"
)

var log logrus.FieldLogger = defaultLogger()

// SetLogger updates the logger this package uses. If l is nil, logging is
// discarded.
func SetLogger(l logrus.FieldLogger) {
	if l == nil {
		silent := logrus.New()
		silent.SetOutput(io.Discard)
		log = silent
		return
	}
	log = l
}

func defaultLogger() logrus.FieldLogger {
	return logrus.StandardLogger()
}
