package logging

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
)

const consoleTimeLayout = "15:04:05"

// consoleHandler renders one line per record:
//
//	15:04:05 WARN openai: [12/3] request attempt failed attempt=2 run_id=...
//
// The component and current item are lifted out of the attributes into the
// prefix; everything else follows as key=value pairs.
type consoleHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  *slog.LevelVar
	attrs  []slog.Attr
	prefix string
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: lvl}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	var component, item string
	var pairs bytes.Buffer
	add := func(attr slog.Attr) {
		attr.Value = attr.Value.Resolve()
		switch {
		case attr.Equal(slog.Attr{}):
		case attr.Key == FieldComponent:
			component = valueText(attr.Value)
		case attr.Key == FieldItem:
			item = valueText(attr.Value)
		default:
			pairs.WriteByte(' ')
			pairs.WriteString(attr.Key)
			pairs.WriteByte('=')
			pairs.WriteString(quoteIfNeeded(valueText(attr.Value)))
		}
	}
	for _, attr := range h.attrs {
		add(attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		attr.Key = h.prefix + attr.Key
		add(attr)
		return true
	})

	var line bytes.Buffer
	if !record.Time.IsZero() {
		line.WriteString(record.Time.Format(consoleTimeLayout))
		line.WriteByte(' ')
	}
	line.WriteString(levelLabel(record.Level))
	line.WriteByte(' ')
	if component != "" {
		line.WriteString(component + ": ")
	}
	if item != "" {
		line.WriteString("[" + item + "] ")
	}
	line.WriteString(record.Message)
	line.Write(pairs.Bytes())
	line.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(line.Bytes())
	return err
}

// WithAttrs keeps attributes unrendered so component and item can still be
// lifted into the prefix at Handle time.
func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, attr := range attrs {
		attr.Key = h.prefix + attr.Key
		next.attrs = append(next.attrs, attr)
	}
	return &next
}

// WithGroup flattens groups into dotted keys.
func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func valueText(v slog.Value) string {
	if v.Kind() == slog.KindAny {
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
	}
	if v.Kind() == slog.KindGroup {
		parts := make([]string, 0, len(v.Group()))
		for _, attr := range v.Group() {
			parts = append(parts, attr.Key+"="+quoteIfNeeded(valueText(attr.Value.Resolve())))
		}
		return "{" + strings.Join(parts, " ") + "}"
	}
	return v.String()
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
