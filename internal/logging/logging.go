package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the root logger. A "console" suffix on level (e.g. "debug,console")
// switches to the human readable writer for local runs.
func New(level string) zerolog.Logger {
	parts := strings.Split(level, ",")
	lvl, err := zerolog.ParseLevel(strings.TrimSpace(parts[0]))
	if err != nil || parts[0] == "" {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if len(parts) > 1 && strings.TrimSpace(parts[1]) == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("service", "agri-market").
		Logger()
}
