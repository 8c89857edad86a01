package api

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"deltasync/identity"
	"deltasync/journal"
	"deltasync/tenant"
)

// SyncHandlers serves the Delta Endpoint (spec.md §4.G).
type SyncHandlers struct {
	Stores *tenant.Manager
}

// GetDeltas handles GET /api/sync?since=<u64>: every journal row for the
// caller's tenant with version > since, ordered ascending. since defaults to
// 0 when omitted or unparseable; it never blocks and never long-polls.
func (h *SyncHandlers) GetDeltas(c echo.Context) error {
	id := identity.MustFromContext(c.Request().Context())

	since, err := strconv.ParseUint(c.QueryParam("since"), 10, 64)
	if err != nil {
		since = 0
	}

	store, err := h.Stores.Open(c.Request().Context(), id.TenantID)
	if err != nil {
		return err
	}

	rows, err := journal.ReadSince(c.Request().Context(), store.DB, since)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, rows)
}
