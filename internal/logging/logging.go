// Package logging builds the structured logger that cmd/server hands to
// the connection handler, plus field-scoping helpers for per-connection
// and per-lobby log lines.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus logger configured from a textual level name
// ("trace", "debug", "info", "warn", "error"). An unrecognized level
// falls back to info rather than failing startup.
func New(level string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	log.SetLevel(parsed)

	return log
}

// ForCon returns a logger scoped to one connection — every connection
// lifecycle log line carries this field.
func ForCon(log *logrus.Logger, con uint16) *logrus.Entry {
	return log.WithField("con", con)
}

// ForLobby returns a logger scoped to one lobby.
func ForLobby(log *logrus.Logger, lobbyName string) *logrus.Entry {
	return log.WithField("lobby", lobbyName)
}
