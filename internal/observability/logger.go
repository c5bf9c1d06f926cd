// Package observability builds the process diagnostic logger. It governs
// only the diagnostic stream (FATAL/WARN/INFO lines per spec.md §7) — the
// rendered ">> {...}" market-data lines never pass through it.
package observability

import (
	"io"
	"os"
	"time"

	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger builds the process-wide diagnostic logger, writing to stderr
// so it never interleaves with the stdout market-data stream. When stderr
// is a color-capable terminal the console writer is backed by a colorable
// writer so level coloring renders correctly on Windows consoles as well as
// Unix terminals.
func InitLogger(app string, noColor bool) zerolog.Logger {
	var w io.Writer = os.Stderr
	useColor := !noColor && isatty.IsTerminal(os.Stderr.Fd())
	if useColor {
		w = colorable.NewColorable(os.Stderr)
	}

	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    !useColor,
	}
	logger := zerolog.New(output).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
