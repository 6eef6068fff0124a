// Package logging configures the process-wide logrus logger and provides
// the HTTP request logging middleware for the query API.
package logging

import (
	"strings"

	log "github.com/sirupsen/logrus"
)

// SetupBaseLogger applies the shared logger defaults: full timestamps and
// info level until configuration says otherwise.
func SetupBaseLogger() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetLevel(log.InfoLevel)
}

// SetLogLevel maps a configured level string onto a logrus level. Unknown
// values fall back to info.
func SetLogLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "verbose":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "quiet", "silent":
		log.SetLevel(log.FatalLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}
