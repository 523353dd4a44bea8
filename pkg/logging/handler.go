package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Handler writes one line per record: time, level, message, then key=value
// pairs. Colors are only used when the writer is a color-capable terminal.
type Handler struct {
	opts   slog.HandlerOptions
	out    io.Writer
	mu     *sync.Mutex
	attrs  []slog.Attr
	prefix string

	colored bool
	dim     *color.Color
	key     *color.Color
	levels  map[slog.Level]*color.Color
}

// NewHandler returns a Handler writing to out.
func NewHandler(out io.Writer, opts *slog.HandlerOptions) *Handler {
	h := &Handler{out: out, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	if SupportsColor(out) {
		h.colored = true
		h.dim = color.New(color.FgHiBlack)
		h.key = color.New(color.FgCyan)
		h.levels = map[slog.Level]*color.Color{
			slog.LevelDebug: color.New(color.FgMagenta),
			slog.LevelInfo:  color.New(color.FgGreen),
			slog.LevelWarn:  color.New(color.FgYellow),
			slog.LevelError: color.New(color.FgRed, color.Bold),
		}
	}
	return h
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	if !r.Time.IsZero() {
		b.WriteString(h.paint(h.dim, r.Time.Format(time.TimeOnly)))
		b.WriteByte(' ')
	}
	level := fmt.Sprintf("%-5s", r.Level.String())
	b.WriteString(h.paint(h.levelColor(r.Level), level))
	b.WriteByte(' ')
	b.WriteString(r.Message)
	for _, a := range h.attrs {
		h.appendAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, h.prefix, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

func (h *Handler) appendAttr(b *strings.Builder, prefix string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, prefix+a.Key+".", ga)
		}
		return
	}
	fmt.Fprintf(b, " %s=%v", h.paint(h.key, prefix+a.Key), a.Value.Any())
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		next.attrs = append(next.attrs, a)
	}
	return &next
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *Handler) levelColor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return h.levels[slog.LevelError]
	case level >= slog.LevelWarn:
		return h.levels[slog.LevelWarn]
	case level >= slog.LevelInfo:
		return h.levels[slog.LevelInfo]
	default:
		return h.levels[slog.LevelDebug]
	}
}

func (h *Handler) paint(c *color.Color, s string) string {
	if !h.colored || c == nil {
		return s
	}
	return c.Sprint(s)
}
