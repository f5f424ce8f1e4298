// Package logging centralizes the hub's logger construction. Every
// component logs through a *log.Logger from charmbracelet/log instead of
// the stdlib log package, tagged with its own prefix the way upstream
// device-control tools in this space (QLab-style OSC bridges) do.
package logging

import (
	"os"

	"github.com/charmbracelet/log"
)

// REVISION: logging-v1-prefix-loggers
const revision = "logging-v1-prefix-loggers"

func init() {
	log.Debugf("[logging] REVISION: %s loaded", revision)
}

// New returns a logger prefixed with component, writing to stderr at
// info level by default. Drivers and the hub core call this once at
// construction time and hold onto the result.
func New(component string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.000",
		Prefix:          component,
	})
	if lvl := os.Getenv("PRODHUB_LOG_LEVEL"); lvl != "" {
		if parsed, err := log.ParseLevel(lvl); err == nil {
			l.SetLevel(parsed)
		}
	}
	return l
}
