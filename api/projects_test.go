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
)

func TestCreateProjectJournalsAndReturnsVersion(t *testing.T) {
	rig := newTestRig(t)
	e := echo.New()
	h := &ProjectHandlers{Pipeline: rig.pipe}

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"name":"widget"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = withIdentity(req, "tenant-a", "user-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.CreateProject(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Sync-Version"))
	assert.Contains(t, rec.Body.String(), "widget")
}

func TestCreateProjectRejectsEmptyName(t *testing.T) {
	rig := newTestRig(t)
	e := echo.New()
	h := &ProjectHandlers{Pipeline: rig.pipe}

	req := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"name":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = withIdentity(req, "tenant-a", "user-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreateProject(c)
	require.Error(t, err)
}

func TestRenameProjectNotFound(t *testing.T) {
	rig := newTestRig(t)
	e := echo.New()
	h := &ProjectHandlers{Pipeline: rig.pipe}

	req := httptest.NewRequest(http.MethodPut, "/api/projects/missing", strings.NewReader(`{"name":"new-name"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req = withIdentity(req, "tenant-a", "user-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("missing")

	err := h.RenameProject(c)
	require.Error(t, err)
}

func TestCreateRenameDeleteProjectLifecycle(t *testing.T) {
	rig := newTestRig(t)
	e := echo.New()
	h := &ProjectHandlers{Pipeline: rig.pipe}

	createReq := httptest.NewRequest(http.MethodPost, "/api/projects", strings.NewReader(`{"name":"widget"}`))
	createReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	createReq = withIdentity(createReq, "tenant-a", "user-1")
	createRec := httptest.NewRecorder()
	createCtx := e.NewContext(createReq, createRec)
	require.NoError(t, h.CreateProject(createCtx))

	var created project
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))

	renameReq := httptest.NewRequest(http.MethodPut, "/api/projects/"+created.ID, strings.NewReader(`{"name":"gadget"}`))
	renameReq.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	renameReq = withIdentity(renameReq, "tenant-a", "user-1")
	renameRec := httptest.NewRecorder()
	renameCtx := e.NewContext(renameReq, renameRec)
	renameCtx.SetParamNames("id")
	renameCtx.SetParamValues(created.ID)
	require.NoError(t, h.RenameProject(renameCtx))
	assert.Equal(t, http.StatusOK, renameRec.Code)

	deleteReq := httptest.NewRequest(http.MethodDelete, "/api/projects/"+created.ID, nil)
	deleteReq = withIdentity(deleteReq, "tenant-a", "user-1")
	deleteRec := httptest.NewRecorder()
	deleteCtx := e.NewContext(deleteReq, deleteRec)
	deleteCtx.SetParamNames("id")
	deleteCtx.SetParamValues(created.ID)
	require.NoError(t, h.DeleteProject(deleteCtx))
	assert.Equal(t, http.StatusOK, deleteRec.Code)

	deleteAgainRec := httptest.NewRecorder()
	deleteAgainCtx := e.NewContext(withIdentity(httptest.NewRequest(http.MethodDelete, "/api/projects/"+created.ID, nil), "tenant-a", "user-1"), deleteAgainRec)
	deleteAgainCtx.SetParamNames("id")
	deleteAgainCtx.SetParamValues(created.ID)
	require.Error(t, h.DeleteProject(deleteAgainCtx))
}
