package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const logTimeLayout = "2006-01-02T15:04:05Z"

// ghpHandler formats log records as one tab-separated line:
//
//	<timestamp>\t<level>\t<runID>\t<message>\t<key=value ...>
//
// The run ID ties every line of a sync run together across the log file.
type ghpHandler struct {
	w     io.Writer
	runID string
	attrs []slog.Attr
}

func (h *ghpHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *ghpHandler) Handle(_ context.Context, r slog.Record) error {
	// The whole line goes out in a single Write so concurrent records do
	// not interleave within the MultiWriter targets.
	var line bytes.Buffer
	line.WriteString(r.Time.UTC().Format(logTimeLayout))
	line.WriteByte('\t')
	line.WriteString(r.Level.String())
	line.WriteByte('\t')
	line.WriteString(h.runID)
	line.WriteByte('\t')
	line.WriteString(r.Message)

	for _, a := range h.attrs {
		appendAttr(&line, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&line, a)
		return true
	})
	line.WriteByte('\n')

	_, err := h.w.Write(line.Bytes())
	return err
}

// appendAttr writes "\tkey=value", quoting values that would break the
// tab-separated format.
func appendAttr(line *bytes.Buffer, a slog.Attr) {
	line.WriteByte('\t')
	line.WriteString(a.Key)
	line.WriteByte('=')
	v := a.Value.String()
	if strings.ContainsAny(v, " \t\n") {
		v = strconv.Quote(v)
	}
	line.WriteString(v)
}

func (h *ghpHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ghpHandler{
		w:     h.w,
		runID: h.runID,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *ghpHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to both logDir/ghp.log
// and stderr. It returns the slog.Logger, the open log file (for cleanup),
// and any error.
func newLogger(logDir string, runID string) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "ghp.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	w := io.MultiWriter(f, os.Stderr)
	handler := &ghpHandler{w: w, runID: runID}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the ghp.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
