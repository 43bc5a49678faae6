/*
 * file: logging.go
 * package: logging
 * description:
 *     Configures the process-wide zerolog logger. Every component takes
 *     a zerolog.Logger rather than reaching for a package-level
 *     global, but main wires them all from the single instance built
 *     here.
 */

package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Configure builds a zerolog.Logger writing to output (stderr if nil).
// format "console" renders a human-readable, colorized line; anything
// else (including "") renders structured JSON, which is what a
// supervised process should emit in production.
func Configure(level, format string, output io.Writer) zerolog.Logger {
	if output == nil {
		output = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339

	var w io.Writer = output
	if format == "console" {
		w = zerolog.ConsoleWriter{Out: output, TimeFormat: time.Kitchen}
	}

	logger := zerolog.New(w).With().Timestamp().Logger()

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return logger.Level(lvl)
}
