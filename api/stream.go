package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"deltasync/identity"
	"deltasync/notifybus"
)

// StreamHandlers serves the Stream Endpoint (spec.md §4.H).
type StreamHandlers struct {
	Bus *notifybus.Bus
}

// Events handles GET /sse/events: a long-lived unidirectional push channel
// of version numbers for the caller's tenant. States OPENING -> ACTIVE ->
// CLOSED; no resumption, the client always re-pulls by since on reconnect.
func (h *StreamHandlers) Events(c echo.Context) error {
	id := identity.MustFromContext(c.Request().Context())

	resp := c.Response()

	// The server's WriteTimeout deadline is set per-connection before this
	// handler runs; lifting it here is what lets this one stream outlive it
	// while every other route still gets the short deadline (spec §5, §4.H).
	_ = http.NewResponseController(resp).SetWriteDeadline(time.Time{})

	resp.Header().Set(echo.HeaderContentType, "text/event-stream; charset=utf-8")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.Header().Set("X-Accel-Buffering", "no")
	resp.WriteHeader(http.StatusOK)

	// Comment-line preamble defeats intermediate proxy buffering before the
	// first real event; this is the ACTIVE-state transition marker.
	if _, err := fmt.Fprint(resp, ":ok\n\n"); err != nil {
		return nil
	}
	resp.Flush()

	sub := h.Bus.Subscribe(id.TenantID)
	defer sub.Cancel()

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case v, ok := <-sub.Versions:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(resp, "data: %d\n\n", v); err != nil {
				return nil
			}
			resp.Flush()
		}
	}
}
