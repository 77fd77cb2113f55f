package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler writes one human-readable line per record:
//
//	2026-01-02T15:04:05Z INFO dispatch [evt-1 Task/ecc0]: change handled paths=2
//
// The component, correlation id and entity move into the line header; every
// other attribute trails as key=value.
type consoleHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	level     slog.Level
	addSource bool
	color     bool
	fields    []field
	prefix    string
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Level, addSource, color bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, w: w, level: level, addSource: addSource, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.fields = make([]field, len(h.fields), len(h.fields)+len(attrs))
	copy(next.fields, h.fields)
	for _, attr := range attrs {
		next.fields = appendField(next.fields, h.prefix, attr)
	}
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make([]field, len(h.fields), len(h.fields)+record.NumAttrs())
	copy(fields, h.fields)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendField(fields, h.prefix, attr)
		return true
	})

	var hdr header
	rest := fields[:0]
	for _, f := range fields {
		if !hdr.take(f) {
			rest = append(rest, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(h.levelLabel(record.Level))
	if s := hdr.String(); s != "" {
		b.WriteByte(' ')
		b.WriteString(s)
		b.WriteByte(':')
	}
	b.WriteByte(' ')
	if msg := strings.TrimSpace(record.Message); msg != "" {
		b.WriteString(msg)
	} else {
		b.WriteString("(no message)")
	}
	if h.addSource {
		if record.PC != 0 {
			src, _ := runtime.CallersFrames([]uintptr{record.PC}).Next()
			if src.File != "" {
				fmt.Fprintf(&b, " [%s:%d]", filepath.Base(src.File), src.Line)
			}
		}
	}
	for _, f := range rest {
		b.WriteByte(' ')
		b.WriteString(f.key)
		b.WriteByte('=')
		b.WriteString(quoted(f.value))
	}
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

// header holds the first value seen for each field promoted to the line
// header.
type header struct {
	component   string
	correlation string
	kind        string
	id          string
}

func (hd *header) take(f field) bool {
	var dst *string
	switch f.key {
	case FieldComponent:
		dst = &hd.component
	case FieldCorrelationID:
		dst = &hd.correlation
	case FieldEntityKind:
		dst = &hd.kind
	case FieldEntityID:
		dst = &hd.id
	default:
		return false
	}
	if *dst == "" {
		*dst = plain(f.value)
	}
	return true
}

func (hd header) String() string {
	var scope []string
	if hd.correlation != "" {
		scope = append(scope, hd.correlation)
	}
	switch {
	case hd.kind != "" && hd.id != "":
		scope = append(scope, hd.kind+"/"+hd.id)
	case hd.kind != "":
		scope = append(scope, hd.kind)
	case hd.id != "":
		scope = append(scope, hd.id)
	}
	parts := make([]string, 0, 2)
	if hd.component != "" {
		parts = append(parts, hd.component)
	}
	if len(scope) > 0 {
		parts = append(parts, "["+strings.Join(scope, " ")+"]")
	}
	return strings.Join(parts, " ")
}

func appendField(dst []field, prefix string, attr slog.Attr) []field {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return dst
	}
	if attr.Value.Kind() == slog.KindGroup {
		inner := prefix
		if attr.Key != "" {
			inner = prefix + attr.Key + "."
		}
		for _, a := range attr.Value.Group() {
			dst = appendField(dst, inner, a)
		}
		return dst
	}
	return append(dst, field{key: prefix + attr.Key, value: attr.Value})
}

func plain(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	default:
		return v.String()
	}
}

// quoted renders v, quoting it when it is empty or would break key=value
// parsing.
func quoted(v slog.Value) string {
	s := plain(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiGray   = "\x1b[90m"
)

func (h *consoleHandler) levelLabel(level slog.Level) string {
	label, code := "DEBUG", ansiGray
	switch {
	case level >= slog.LevelError:
		label, code = "ERROR", ansiRed
	case level >= slog.LevelWarn:
		label, code = "WARN", ansiYellow
	case level >= slog.LevelInfo:
		label, code = "INFO", ansiCyan
	}
	if !h.color {
		return label
	}
	return code + label + ansiReset
}
