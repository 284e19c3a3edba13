// Package logging builds the slog handlers used across snipmux.
//
// All packages log through the default slog logger; the handler is
// constructed once at process startup. Records emitted while a publication
// cycle is running automatically carry the cycle ID, so a single cycle's
// log lines can be correlated without threading a logger through every
// component.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format selects the output encoding of the handler.
type Format string

// Supported output formats.
const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

type handlerConfig struct {
	level  slog.Level
	format Format
	writer io.Writer
}

// Option configures the handler returned by NewHandler.
type Option func(*handlerConfig)

// WithLevel sets the minimum level records must have to be emitted.
func WithLevel(level slog.Level) Option {
	return func(c *handlerConfig) {
		c.level = level
	}
}

// WithFormat selects text or JSON output. JSON is the default.
func WithFormat(format Format) Option {
	return func(c *handlerConfig) {
		c.format = format
	}
}

// WithWriter sets the destination. Defaults to stderr so stdout stays
// clean for commands that print data.
func WithWriter(w io.Writer) Option {
	return func(c *handlerConfig) {
		c.writer = w
	}
}

// NewHandler builds the base slog handler wrapped with cycle correlation.
func NewHandler(opts ...Option) slog.Handler {
	cfg := &handlerConfig{
		level:  slog.LevelInfo,
		format: FormatJSON,
		writer: os.Stderr,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	hopts := &slog.HandlerOptions{Level: cfg.level}
	var base slog.Handler
	if cfg.format == FormatText {
		base = slog.NewTextHandler(cfg.writer, hopts)
	} else {
		base = slog.NewJSONHandler(cfg.writer, hopts)
	}
	return &cycleHandler{Handler: base}
}

// ParseLevel maps a level name to a slog.Level, defaulting to info for
// empty or unrecognized values.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info", "":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type cycleContextKey struct{}

type cycleInfo struct {
	id      string
	trigger string
}

// WithCycle returns a context whose log records carry the given cycle ID
// and trigger name.
func WithCycle(ctx context.Context, id, trigger string) context.Context {
	return context.WithValue(ctx, cycleContextKey{}, cycleInfo{id: id, trigger: trigger})
}

// CycleID returns the cycle ID stored in ctx, or an empty string.
func CycleID(ctx context.Context) string {
	info, ok := ctx.Value(cycleContextKey{}).(cycleInfo)
	if !ok {
		return ""
	}
	return info.id
}

// cycleHandler wraps an slog.Handler to inject cycle_id and trigger into
// every record logged under a cycle context, enabling per-cycle log
// correlation.
type cycleHandler struct {
	slog.Handler
}

func (h *cycleHandler) Handle(ctx context.Context, r slog.Record) error {
	if info, ok := ctx.Value(cycleContextKey{}).(cycleInfo); ok {
		r.AddAttrs(
			slog.String("cycle_id", info.id),
			slog.String("trigger", info.trigger),
		)
	}
	return h.Handler.Handle(ctx, r)
}

func (h *cycleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &cycleHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *cycleHandler) WithGroup(name string) slog.Handler {
	return &cycleHandler{Handler: h.Handler.WithGroup(name)}
}
