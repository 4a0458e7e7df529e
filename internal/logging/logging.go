// Package logging builds the charmbracelet/log loggers used by the client and server.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Options configures a logger
type Options struct {
	Level           string
	Prefix          string
	ReportTimestamp bool
	JSON            bool
}

// ParseLevel converts a level name (debug, info, warn, error) to a log.Level
func ParseLevel(s string) (log.Level, error) {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(strings.ToLower(s))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// New creates a logger writing to w
func New(w io.Writer, opts Options) (*log.Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	formatter := log.TextFormatter
	if opts.JSON {
		formatter = log.JSONFormatter
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Formatter:       formatter,
		ReportTimestamp: opts.ReportTimestamp,
		Prefix:          opts.Prefix,
	}), nil
}

// File is a logger backed by a file that must be closed when done
type File struct {
	*log.Logger
	Path string
	file *os.File
}

// OpenFile creates a logger appending to path. The terminal belongs to the
// TUI while it runs, so the client logs here instead of stderr.
func OpenFile(path string, opts Options) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	opts.ReportTimestamp = true
	logger, err := New(f, opts)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &File{Logger: logger, Path: path, file: f}, nil
}

// Close closes the log file
func (f *File) Close() error {
	if f == nil || f.file == nil {
		return nil
	}
	return f.file.Close()
}
