package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/chifron/chifron/internal/config"
)

// setupLog applies the log settings. Output goes to stderr, or is appended
// to c.File when set; the returned func closes that file.
func setupLog(c config.LogConfig) (func() error, error) {
	level, err := log.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	log.SetReportTimestamp(true)

	switch c.Format {
	case "json":
		log.SetFormatter(log.JSONFormatter)
	case "logfmt":
		log.SetFormatter(log.LogfmtFormatter)
	default:
		log.SetFormatter(log.TextFormatter)
	}

	if c.File == "" {
		log.SetOutput(os.Stderr)
		return func() error { return nil }, nil
	}

	if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}
	f, err := os.OpenFile(c.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("unable to open log file: %w", err)
	}
	log.SetOutput(f)
	return f.Close, nil
}
