package http

import (
	"bufio"
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/logstream"
	"github.com/valyala/fasthttp"
)

// LogHandler streams the process log to clients as server-sent events.
type LogHandler struct {
	broadcaster *logstream.Broadcaster
	keepAlive   time.Duration
}

func NewLogHandler(broadcaster *logstream.Broadcaster, keepAlive time.Duration) *LogHandler {
	if keepAlive <= 0 {
		keepAlive = 15 * time.Second
	}
	return &LogHandler{broadcaster: broadcaster, keepAlive: keepAlive}
}

// StreamLogs writes one event per log line until the client goes away or
// the broadcaster shuts down. Idle streams get a comment line every
// keepAlive, which is also how a vanished client is noticed.
func (h *LogHandler) StreamLogs(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.broadcaster.Subscribe()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		for {
			ctx, cancel := context.WithTimeout(context.Background(), h.keepAlive)
			ev, err := sub.Next(ctx)
			cancel()

			switch {
			case errors.Is(err, context.DeadlineExceeded):
				if _, err := w.WriteString(": keepalive\n\n"); err != nil {
					return
				}
			case err != nil:
				return
			default:
				if err := writeEvent(w, ev); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}

// writeEvent frames ev as one server-sent event. Multi-line messages become
// several data fields of the same event.
func writeEvent(w *bufio.Writer, ev domain.LogEvent) error {
	msg := strings.TrimRight(ev.Message, "\n")
	for _, line := range strings.Split(msg, "\n") {
		if _, err := w.WriteString("data: " + strings.TrimSuffix(line, "\r") + "\n"); err != nil {
			return err
		}
	}
	_, err := w.WriteString("\n")
	return err
}
