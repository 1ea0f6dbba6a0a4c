package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/offlinefirst/fractalcap/pkg/config"
)

// Options describe how to configure a logger instance.
type Options struct {
	Level  string
	Format string
	Output io.Writer
	// Component, when set, is attached to every record.
	Component string
}

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New creates a structured logger backed by Go's slog package. Timestamps are
// rendered as RFC3339 in UTC so capture.log lines and structured output line up.
func New(opts Options) (*slog.Logger, error) {
	normalized, err := config.NormalizeLogLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	lvl, ok := levels[normalized]
	if !ok {
		return nil, fmt.Errorf("unhandled log level %q", normalized)
	}
	format, err := config.NormalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	var levelVar slog.LevelVar
	levelVar.Set(lvl)
	handlerOpts := slog.HandlerOptions{
		Level:       &levelVar,
		ReplaceAttr: replaceTimeAttr,
	}

	var handler slog.Handler
	if format == "console" {
		handler = slog.NewTextHandler(out, &handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, &handlerOpts)
	}

	logger := slog.New(handler)
	if opts.Component != "" {
		logger = logger.With("component", opts.Component)
	}
	return logger, nil
}

func replaceTimeAttr(_ []string, attr slog.Attr) slog.Attr {
	if attr.Key == slog.TimeKey && attr.Value.Kind() == slog.KindTime {
		attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
	}
	return attr
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Component tags logger output with the emitting subsystem.
func Component(logger *slog.Logger, name string) *slog.Logger {
	if logger == nil {
		logger = Discard()
	}
	return logger.With("component", name)
}
