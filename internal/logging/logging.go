// Package logging wires up the process-wide slog.Logger: a TTY-aware
// colored handler via github.com/lmittmann/tint when stdout is a
// terminal, and a plain JSON handler otherwise, the same split the
// teacher's cmd/client/main.go makes.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// Options configures Setup.
type Options struct {
	// Level is the minimum level that reaches either handler.
	Level slog.Level
	// Output overrides os.Stdout, for tests.
	Output io.Writer
	// ForcePlain disables the tint handler even on a real terminal.
	ForcePlain bool
}

// Setup builds a slog.Logger per Options, installs it as the process
// default via slog.SetDefault, and returns it.
func Setup(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if !opts.ForcePlain && isTerminal(out) {
		handler = tint.NewHandler(out, &tint.Options{
			Level:      opts.Level,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    false,
		})
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: opts.Level})
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}
