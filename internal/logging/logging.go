// Package logging builds the slog loggers used by the CLI, the servers and
// the pipeline driver.
//
// Output always goes to stderr because stdout carries MCP protocol traffic
// and CSV. An analysis run may additionally append to audit.log in its output
// directory.
package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// AuditLogName is the file appended to in the output directory when file
// output is enabled.
const AuditLogName = "audit.log"

// Options selects level, format and optional file output.
type Options struct {
	// Level is one of debug, info, warn or error. Unknown values mean info.
	Level string

	// Format is "text", "json" or "traditional".
	Format string

	// FileOutput enables audit.log in the output directory.
	FileOutput bool
}

// New returns a slog.Logger writing to w with the provided level string
// (debug, info, warn, error). format may be "json", "text" or "traditional".
func New(w io.Writer, level string, format string) *slog.Logger {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "traditional":
		handler = NewTraditionalHandler(w, lvl)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Setup configures logging for one analysis run writing into outDir.
//
// With FileOutput set, records are also appended to outDir/audit.log in the
// traditional format. The returned close function releases the file and is
// never nil.
func Setup(opts Options, stderr io.Writer, outDir string) (*slog.Logger, func() error, error) {
	noop := func() error { return nil }
	if !opts.FileOutput {
		return New(stderr, opts.Level, opts.Format), noop, nil
	}

	path := filepath.Join(outDir, AuditLogName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open audit log: %w", err)
	}

	console := New(stderr, opts.Level, opts.Format).Handler()
	audit := NewTraditionalHandler(file, parseLevel(opts.Level))
	logger := slog.New(&teeHandler{handlers: []slog.Handler{console, audit}})

	logger.Info("audit log opened",
		"path", path,
		"level", opts.Level,
		"format", opts.Format,
	)
	return logger, file.Close, nil
}

// TraditionalHandler implements slog.Handler with the classic
// "date time [LEVEL] message [k=v ...]" line format.
type TraditionalHandler struct {
	logger *log.Logger
	level  slog.Level
	attrs  []slog.Attr
	group  string
}

// NewTraditionalHandler returns a handler writing to w at or above level.
func NewTraditionalHandler(w io.Writer, level slog.Level) *TraditionalHandler {
	return &TraditionalHandler{
		logger: log.New(w, "", log.LstdFlags),
		level:  level,
	}
}

func (h *TraditionalHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *TraditionalHandler) Handle(ctx context.Context, r slog.Record) error {
	attrs := make([]string, 0, len(h.attrs)+r.NumAttrs())
	for _, a := range h.attrs {
		attrs = append(attrs, h.format(a))
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, h.format(a))
		return true
	})

	msg := r.Message
	if len(attrs) > 0 {
		msg = fmt.Sprintf("%s [%s]", msg, strings.Join(attrs, " "))
	}

	return h.logger.Output(2, fmt.Sprintf("[%s] %s", strings.ToUpper(r.Level.String()), msg))
}

func (h *TraditionalHandler) format(a slog.Attr) string {
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	return fmt.Sprintf("%s=%v", key, a.Value)
}

func (h *TraditionalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &clone
}

func (h *TraditionalHandler) WithGroup(name string) slog.Handler {
	clone := *h
	if clone.group != "" {
		name = clone.group + "." + name
	}
	clone.group = name
	return &clone
}

// teeHandler fans records out to several handlers.
type teeHandler struct {
	handlers []slog.Handler
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: out}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		out[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: out}
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogRunStart logs the beginning of an analysis run.
func LogRunStart(logger *slog.Logger, runID, inputPath, outputDir string, params map[string]any) {
	logger.Info("run started",
		"id", runID,
		"input", inputPath,
		"output", outputDir,
		"params", params,
	)
}

// LogRunComplete logs a successful run.
func LogRunComplete(logger *slog.Logger, runID string, duration time.Duration, regions int) {
	logger.Info("run completed successfully",
		"id", runID,
		"duration_ms", duration.Milliseconds(),
		"duration_human", duration.String(),
		"regions", regions,
	)
}

// LogRunError logs a failed run.
func LogRunError(logger *slog.Logger, runID string, duration time.Duration, err error) {
	logger.Error("run failed",
		"id", runID,
		"duration_ms", duration.Milliseconds(),
		"error", err.Error(),
	)
}

// LogStage logs one pipeline stage at debug level.
func LogStage(logger *slog.Logger, runID, stage string, details map[string]any) {
	logger.Debug("pipeline stage",
		"id", runID,
		"stage", stage,
		"details", details,
	)
}
