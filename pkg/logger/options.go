package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger built by New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithFormat picks the text, pretty or JSON handler.
func WithFormat(f Format) Option {
	return func(c *config) { c.format = f }
}

// WithWriter sets the outputs. Several writers receive every record.
func WithWriter(w ...io.Writer) Option {
	return func(c *config) { c.writers = w }
}

// WithSource adds file:line to records.
func WithSource(source bool) Option {
	return func(c *config) { c.source = source }
}

// WithComponent tags every record with component=name.
func WithComponent(name string) Option {
	return func(c *config) {
		if name != "" {
			c.attrs = append(c.attrs, "component", name)
		}
	}
}
