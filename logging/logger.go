package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/mattn/go-isatty"
)

// Log output formats
const (
	FormatTerminal = "terminal"
	FormatLogfmt   = "logfmt"
	FormatJSON     = "json"
)

// TimestampPrecision controls how log record times are rendered.
type TimestampPrecision string

const (
	TimestampSeconds TimestampPrecision = "sec"
	TimestampMillis  TimestampPrecision = "ms"
	TimestampNanos   TimestampPrecision = "ns"
	TimestampNone    TimestampPrecision = "none"
)

// ParseTimestampPrecision parses one of sec, ms, ns or none.
func ParseTimestampPrecision(s string) (TimestampPrecision, error) {
	switch p := TimestampPrecision(strings.ToLower(s)); p {
	case TimestampSeconds, TimestampMillis, TimestampNanos, TimestampNone:
		return p, nil
	case "":
		return TimestampNone, nil
	default:
		return "", fmt.Errorf("invalid timestamp precision %q, expected one of sec, ms, ns, none", s)
	}
}

// Config describes the diagnostic logger.
type Config struct {
	Format    string
	Color     bool
	Verbosity int // Number of -v flags
	Quiet     bool
	Timestamp TimestampPrecision
}

// LevelFromVerbosity maps the number of -v flags to a log level. Without any flag
// only errors are logged.
func LevelFromVerbosity(verbosity int) slog.Level {
	switch {
	case verbosity <= 0:
		return log.LevelError
	case verbosity == 1:
		return log.LevelWarn
	case verbosity == 2:
		return log.LevelInfo
	case verbosity == 3:
		return log.LevelDebug
	default:
		return log.LevelTrace
	}
}

// ColorDefault reports whether w is a terminal, which is when colored output is
// enabled unless configured otherwise.
func ColorDefault(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewLogger builds the diagnostic logger writing to w.
func NewLogger(w io.Writer, cfg Config) (log.Logger, error) {
	if cfg.Quiet {
		return log.NewLogger(log.DiscardHandler()), nil
	}
	level := LevelFromVerbosity(cfg.Verbosity)

	format := strings.ToLower(cfg.Format)
	if format == "" {
		format = FormatTerminal
	}
	// The terminal handler always prints a time, so it can't honour "none".
	if format == FormatTerminal && cfg.Timestamp == TimestampNone {
		format = FormatLogfmt
	}

	var handler slog.Handler
	switch format {
	case FormatTerminal:
		handler = log.NewTerminalHandlerWithLevel(w, level, cfg.Color)
	case FormatLogfmt:
		handler = log.LogfmtHandlerWithLevel(w, level)
	case FormatJSON:
		handler = log.JSONHandlerWithLevel(w, level)
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}

	return log.NewLogger(withTimestampPrecision(handler, cfg.Timestamp)), nil
}

// SetupDefault builds the logger and installs it as the process-wide default.
func SetupDefault(w io.Writer, cfg Config) (log.Logger, error) {
	logger, err := NewLogger(w, cfg)
	if err != nil {
		return nil, err
	}
	log.SetDefault(logger)
	return logger, nil
}

func withTimestampPrecision(h slog.Handler, precision TimestampPrecision) slog.Handler {
	if precision == TimestampNanos || precision == "" {
		return h
	}
	return &precisionHandler{inner: h, precision: precision}
}

// precisionHandler rewrites record times before handing them on. slog handlers
// omit the time entirely for a zero time.
type precisionHandler struct {
	inner     slog.Handler
	precision TimestampPrecision
}

func (h *precisionHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *precisionHandler) Handle(ctx context.Context, r slog.Record) error {
	switch h.precision {
	case TimestampSeconds:
		r.Time = r.Time.Truncate(time.Second)
	case TimestampMillis:
		r.Time = r.Time.Truncate(time.Millisecond)
	case TimestampNone:
		r.Time = time.Time{}
	}
	return h.inner.Handle(ctx, r)
}

func (h *precisionHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &precisionHandler{inner: h.inner.WithAttrs(attrs), precision: h.precision}
}

func (h *precisionHandler) WithGroup(name string) slog.Handler {
	return &precisionHandler{inner: h.inner.WithGroup(name), precision: h.precision}
}
