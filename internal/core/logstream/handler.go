package logstream

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/melih/lighthouse-runner/internal/core/domain"
)

// ComponentKey is the attribute that tags the originating component of a
// log record.
const ComponentKey = "component"

// Handler is a slog.Handler that publishes records to a Broadcaster and
// forwards them to another handler.
type Handler struct {
	next      slog.Handler
	b         *Broadcaster
	level     slog.Leveler
	component string
	prefix    string
	attrs     []string
}

// NewHandler returns a handler publishing records at or above level to b.
// next may be nil.
func NewHandler(b *Broadcaster, level slog.Leveler, next slog.Handler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &Handler{next: next, b: b, level: level}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	if level >= h.level.Level() {
		return true
	}
	return h.next != nil && h.next.Enabled(ctx, level)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.level.Level() {
		component := h.component
		attrs := append([]string(nil), h.attrs...)
		r.Attrs(func(a slog.Attr) bool {
			if h.prefix == "" && a.Key == ComponentKey {
				component = a.Value.String()
				return true
			}
			attrs = append(attrs, formatAttr(h.prefix, a)...)
			return true
		})

		msg := r.Message
		if len(attrs) > 0 {
			msg = msg + " " + strings.Join(attrs, " ")
		}
		h.b.Publish(domain.LogEvent{
			Time:      r.Time,
			Level:     r.Level,
			Message:   msg,
			Component: component,
		})
	}

	if h.next != nil && h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *Handler) WithAttrs(as []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range as {
		if h.prefix == "" && a.Key == ComponentKey {
			c.component = a.Value.String()
			continue
		}
		c.attrs = append(c.attrs, formatAttr(h.prefix, a)...)
	}
	if h.next != nil {
		c.next = h.next.WithAttrs(as)
	}
	return c
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	if h.next != nil {
		c.next = h.next.WithGroup(name)
	}
	return c
}

func (h *Handler) clone() *Handler {
	c := *h
	c.attrs = append([]string(nil), h.attrs...)
	return &c
}

func formatAttr(prefix string, a slog.Attr) []string {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return nil
	}
	if a.Value.Kind() == slog.KindGroup {
		var out []string
		p := prefix
		if a.Key != "" {
			p = prefix + a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			out = append(out, formatAttr(p, ga)...)
		}
		return out
	}
	return []string{fmt.Sprintf("%s%s=%v", prefix, a.Key, a.Value.Any())}
}
