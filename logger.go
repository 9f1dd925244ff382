package main

import (
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
)

// NewLogger returns a structured slog.Logger with the given level. Output is
// human readable text on a terminal and JSON otherwise.
func NewLogger(f *os.File, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return slog.New(slog.NewTextHandler(f, opts))
	}
	return slog.New(slog.NewJSONHandler(f, opts))
}
