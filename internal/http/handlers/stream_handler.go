package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"

	"rentdesk/internal/domain"
	"rentdesk/internal/livesync"
	applog "rentdesk/internal/log"
	"rentdesk/internal/metrics"
	"rentdesk/internal/repos"
)

// StreamHandler pushes the full inventory and reservation sets as server-sent
// events, once on connect and again after every change.
type StreamHandler struct {
	Feed    *livesync.Feed
	Metrics *metrics.Metrics
	// Base ends every open stream when cancelled, e.g. on shutdown.
	Base context.Context
	Ping time.Duration
}

type sseMessage struct {
	event string
	data  []byte
}

// GET /api/v1/stream
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	base := h.Base
	if base == nil {
		base = context.Background()
	}
	ping := h.Ping
	if ping <= 0 {
		ping = 25 * time.Second
	}
	applog.Info(c, "stream.open", nil)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(base)
		defer cancel()
		h.Metrics.StreamOpened()
		defer h.Metrics.StreamClosed()

		msgs := make(chan sseMessage, 4)
		push := func(event string, v any) {
			b, err := json.Marshal(v)
			if err != nil {
				applog.Error(nil, "stream.encode.fail", err, map[string]any{"event": event})
				return
			}
			select {
			case msgs <- sseMessage{event: event, data: b}:
			case <-ctx.Done():
			}
		}
		defer h.Feed.Subscribe(ctx, domain.CollectionInventory, func(docs []repos.Document) {
			push(domain.CollectionInventory, repos.DecodeInventoryList(docs))
		})()
		defer h.Feed.Subscribe(ctx, domain.CollectionReservations, func(docs []repos.Document) {
			push(domain.CollectionReservations, repos.DecodeReservationList(docs))
		})()

		hello, _ := json.Marshal(map[string]any{"ok": true, "ts": time.Now().Unix()})
		fmt.Fprintf(w, "event: hello\ndata: %s\n\n", hello)
		if err := w.Flush(); err != nil {
			return
		}

		keep := time.NewTicker(ping)
		defer keep.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-keep.C:
				fmt.Fprint(w, ": ping\n\n")
			case m := <-msgs:
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", m.event, m.data)
			}
			if err := w.Flush(); err != nil {
				// client went away
				return
			}
		}
	}))
	return nil
}
