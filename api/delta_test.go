package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deltasync/journal"
)

func createProject(t *testing.T, e *echo.Echo, h *ProjectHandlers, name string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"name":"`+name+`"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = withIdentity(req, "tenant-a", "user-1")
	rec := httptest.NewRecorder()
	require.NoError(t, h.CreateProject(e.NewContext(req, rec)))
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestGetDeltasReturnsRowsAfterSince(t *testing.T) {
	rig := newTestRig(t)
	e := echo.New()
	projectHandlers := &ProjectHandlers{Pipeline: rig.pipe}
	syncHandlers := &SyncHandlers{Stores: rig.stores}

	for _, name := range []string{"a", "b", "c"} {
		createProject(t, e, projectHandlers, name)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/sync?since=1", nil)
	req = withIdentity(req, "tenant-a", "user-1")
	rec := httptest.NewRecorder()

	require.NoError(t, syncHandlers.GetDeltas(e.NewContext(req, rec)))
	assert.Equal(t, http.StatusOK, rec.Code)

	var rows []journal.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, uint64(2), rows[0].Version)
	assert.Equal(t, uint64(3), rows[1].Version)
}

func TestGetDeltasDefaultsSinceToZero(t *testing.T) {
	rig := newTestRig(t)
	e := echo.New()
	projectHandlers := &ProjectHandlers{Pipeline: rig.pipe}
	syncHandlers := &SyncHandlers{Stores: rig.stores}

	createProject(t, e, projectHandlers, "widget")

	req := httptest.NewRequest(http.MethodGet, "/api/sync", nil)
	req = withIdentity(req, "tenant-a", "user-1")
	rec := httptest.NewRecorder()

	require.NoError(t, syncHandlers.GetDeltas(e.NewContext(req, rec)))

	var rows []journal.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
}

func TestGetDeltasIsolatesTenants(t *testing.T) {
	rig := newTestRig(t)
	e := echo.New()
	projectHandlers := &ProjectHandlers{Pipeline: rig.pipe}
	syncHandlers := &SyncHandlers{Stores: rig.stores}

	createProject(t, e, projectHandlers, "widget")

	req := httptest.NewRequest(http.MethodGet, "/api/sync", nil)
	req = withIdentity(req, "tenant-b", "user-2")
	rec := httptest.NewRecorder()

	require.NoError(t, syncHandlers.GetDeltas(e.NewContext(req, rec)))

	var rows []journal.Row
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Empty(t, rows)
}
