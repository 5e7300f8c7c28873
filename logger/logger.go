package logger

import (
	"log/slog"
	"os"
)

func NewLogger() *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, nil)
	logger := slog.New(handler)
	return logger
}
