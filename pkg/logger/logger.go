// Package logger builds the structured loggers used across dragon.
//
// Everything logs through *slog.Logger. The CLI uses the pretty
// charmbracelet handler, the API server can switch to JSON, and tests use
// Nop.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
)

// Format selects the handler New builds.
type Format int

const (
	FormatText Format = iota
	FormatPretty
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatPretty:
		return "pretty"
	case FormatJSON:
		return "json"
	default:
		return "text"
	}
}

// ParseFormat maps "text", "pretty" or "json" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "":
		return FormatText, nil
	case "pretty":
		return FormatPretty, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("unknown log format %q (text, pretty, json)", s)
	}
}

type config struct {
	level   slog.Level
	format  Format
	source  bool
	writers []io.Writer
	attrs   []any
}

// New creates a *slog.Logger from the given options. Without options it
// writes text records at Info level to stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{level: slog.LevelInfo}
	for _, opt := range opts {
		opt(c)
	}

	var w io.Writer = os.Stdout
	if len(c.writers) == 1 {
		w = c.writers[0]
	} else if len(c.writers) > 1 {
		w = io.MultiWriter(c.writers...)
	}

	l := slog.New(newHandler(c, w))
	if len(c.attrs) > 0 {
		l = l.With(c.attrs...)
	}
	return l
}

func newHandler(c *config, w io.Writer) slog.Handler {
	switch c.format {
	case FormatPretty:
		return charmlog.NewWithOptions(w, charmlog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
			ReportCaller:    c.source,
			Level:           charmlog.Level(c.level),
		})
	case FormatJSON:
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: c.level, AddSource: c.source})
	default:
		return slog.NewTextHandler(w, &slog.HandlerOptions{Level: c.level, AddSource: c.source})
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
