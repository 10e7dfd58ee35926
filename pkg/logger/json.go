package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// LogEntry is one line of json log output. The attributes every relay log
// line carries are promoted to top-level keys so log pipelines can index
// them; everything else lands in Fields.
type LogEntry struct {
	Level     string         `json:"level"`
	Timestamp string         `json:"timestamp"`
	Component string         `json:"component,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Channel   string         `json:"channel,omitempty"`
	Message   string         `json:"message"`
	Error     string         `json:"error,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
	Caller    string         `json:"caller,omitempty"`
}

type jsonHandler struct {
	level     slog.Level
	addSource bool
	writer    io.Writer
	mu        *sync.Mutex
	attrs     []slog.Attr
	groups    []string
}

func newJSONHandler(writer io.Writer, level slog.Level, addSource bool) *jsonHandler {
	return &jsonHandler{
		level:     level,
		addSource: addSource,
		writer:    writer,
		mu:        &sync.Mutex{},
	}
}

func (h *jsonHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *jsonHandler) Handle(_ context.Context, record slog.Record) error {
	at := record.Time
	if at.IsZero() {
		at = time.Now()
	}

	entry := LogEntry{
		Level:     strings.ToLower(record.Level.String()),
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Message:   record.Message,
	}

	fields := make(map[string]any)
	for _, attr := range h.attrs {
		h.apply(&entry, fields, attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		h.apply(&entry, fields, attr)
		return true
	})
	if len(fields) > 0 {
		entry.Fields = fields
	}

	if h.addSource {
		entry.Caller = caller(record.PC)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.writer.Write(append(line, '\n'))
	return err
}

func (h *jsonHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &next
}

func (h *jsonHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.groups = append(append([]string{}, h.groups...), name)
	return &next
}

// apply promotes well-known ungrouped keys onto entry and stores the rest in
// fields under their dotted group path.
func (h *jsonHandler) apply(entry *LogEntry, fields map[string]any, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	if len(h.groups) == 0 && attr.Value.Kind() != slog.KindGroup {
		switch attr.Key {
		case "component":
			entry.Component = attr.Value.String()
			return
		case "request_id":
			entry.RequestID = attr.Value.String()
			return
		case "channel":
			entry.Channel = attr.Value.String()
			return
		case "error":
			entry.Error = fmt.Sprint(attr.Value.Any())
			return
		}
	}

	key := attr.Key
	if len(h.groups) > 0 {
		key = strings.Join(h.groups, ".") + "." + attr.Key
	}
	fields[key] = value(attr.Value)
}

func value(v slog.Value) any {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339Nano)
	case slog.KindGroup:
		group := v.Group()
		out := make(map[string]any, len(group))
		for _, item := range group {
			out[item.Key] = value(item.Value.Resolve())
		}
		return out
	case slog.KindAny:
		// error values marshal to {} otherwise
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return v.Any()
	default:
		return v.Any()
	}
}

func caller(pc uintptr) string {
	if pc == 0 {
		return ""
	}

	frame, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	if frame.File == "" {
		return ""
	}

	return fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line)
}
