// Package logging builds the zerolog loggers used by the command-line tool and
// the development server.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// LevelEnv names the variable that overrides the default level.
const LevelEnv = "TVSHOWS_LOG_LEVEL"

// Options control [New].
type Options struct {
	// App is attached to every event.
	App string
	// Level is a zerolog level name. Empty falls back to LevelEnv, then info.
	Level string
	// JSON disables the console writer.
	JSON bool
	Out  io.Writer
}

// New returns a logger writing to opts.Out, or stderr when unset. Console
// output is used unless opts.JSON is set.
func New(opts Options) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if !opts.JSON {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(out).Level(ParseLevel(opts.Level)).With().Timestamp()
	if opts.App != "" {
		ctx = ctx.Str("app", opts.App)
	}
	return ctx.Logger()
}

// ParseLevel resolves name, then LevelEnv. Unknown names mean info.
func ParseLevel(name string) zerolog.Level {
	if strings.TrimSpace(name) == "" {
		name = os.Getenv(LevelEnv)
	}
	if strings.TrimSpace(name) == "" {
		return zerolog.InfoLevel
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
