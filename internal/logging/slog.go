package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// DiagnosticsFile is the slog output inside the log directory.
const DiagnosticsFile = "fv2.log"

// Configure installs a process-wide text logger at level writing to w and
// returns it.
func Configure(level slog.Level, w io.Writer) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// OpenDiagnostics opens (appending) the diagnostic log in dir.
func OpenDiagnostics(dir string) (*os.File, error) {
	path := filepath.Join(resolveLogDir(dir), DiagnosticsFile)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open diagnostic log: %w", err)
	}
	return f, nil
}
