package noop

import (
	"log/slog"
)

// New returns a logger that drops every record.
func New() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
