package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"deltasync/apperror"
	"deltasync/identity"
	"deltasync/journal"
	"deltasync/pipeline"
)

// ProjectHandlers is the reference domain write handler (SUPPLEMENTED
// FEATURES item 1): the domain schema is explicitly out of core scope, but
// this one concrete handler exercises the Write Pipeline end to end so the
// engine's invariants have something real to run against.
type ProjectHandlers struct {
	Pipeline *pipeline.Pipeline
}

type project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type createProjectRequest struct {
	Name string `json:"name" validate:"required"`
}

// CreateProject handles POST /api/projects: inserts a project row and
// journals it as a single INSERT at one allocated version.
func (h *ProjectHandlers) CreateProject(c echo.Context) error {
	id := identity.MustFromContext(c.Request().Context())

	var req createProjectRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequestf("invalid request body")
	}
	if req.Name == "" {
		return apperror.BadRequestf("name is required")
	}

	p := project{ID: uuid.NewString(), Name: req.Name}

	result, err := h.Pipeline.Execute(c.Request().Context(), id.TenantID, func(ctx context.Context, tx *sql.Tx) ([]pipeline.Mutation, error) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO projects (id, name) VALUES (?, ?)`, p.ID, p.Name); err != nil {
			return nil, apperror.Wrap(apperror.StoreUnavailable, "insert project", err)
		}

		payload, err := json.Marshal(p)
		if err != nil {
			return nil, apperror.Wrap(apperror.BadRequest, "encode project payload", err)
		}

		return []pipeline.Mutation{{
			TableName: "projects",
			EntityID:  p.ID,
			Operation: journal.OpInsert,
			Payload:   string(payload),
		}}, nil
	})
	if err != nil {
		return err
	}

	c.Response().Header().Set("X-Sync-Version", strconv.FormatUint(result.Version, 10))
	return c.JSON(http.StatusCreated, p)
}

type renameProjectRequest struct {
	Name string `json:"name" validate:"required"`
}

// RenameProject handles PUT /api/projects/:id: updates the project's name
// and journals the canonical post-mutation row as an UPDATE.
func (h *ProjectHandlers) RenameProject(c echo.Context) error {
	id := identity.MustFromContext(c.Request().Context())
	projectID := c.Param("id")
	if projectID == "" {
		return apperror.BadRequestf("project id is required")
	}

	var req renameProjectRequest
	if err := c.Bind(&req); err != nil {
		return apperror.BadRequestf("invalid request body")
	}
	if req.Name == "" {
		return apperror.BadRequestf("name is required")
	}

	var p project
	result, err := h.Pipeline.Execute(c.Request().Context(), id.TenantID, func(ctx context.Context, tx *sql.Tx) ([]pipeline.Mutation, error) {
		res, err := tx.ExecContext(ctx, `UPDATE projects SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, req.Name, projectID)
		if err != nil {
			return nil, apperror.Wrap(apperror.StoreUnavailable, "update project", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, apperror.NotFoundf("project %s not found", projectID)
		}

		p = project{ID: projectID, Name: req.Name}
		payload, err := json.Marshal(p)
		if err != nil {
			return nil, apperror.Wrap(apperror.BadRequest, "encode project payload", err)
		}

		return []pipeline.Mutation{{
			TableName: "projects",
			EntityID:  projectID,
			Operation: journal.OpUpdate,
			Payload:   string(payload),
		}}, nil
	})
	if err != nil {
		return err
	}

	c.Response().Header().Set("X-Sync-Version", strconv.FormatUint(result.Version, 10))
	return c.JSON(http.StatusOK, p)
}

// DeleteProject handles DELETE /api/projects/:id: removes the row and
// journals a DELETE carrying only the primary key (payload "{}").
func (h *ProjectHandlers) DeleteProject(c echo.Context) error {
	id := identity.MustFromContext(c.Request().Context())
	projectID := c.Param("id")
	if projectID == "" {
		return apperror.BadRequestf("project id is required")
	}

	_, err := h.Pipeline.Execute(c.Request().Context(), id.TenantID, func(ctx context.Context, tx *sql.Tx) ([]pipeline.Mutation, error) {
		res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, projectID)
		if err != nil {
			return nil, apperror.Wrap(apperror.StoreUnavailable, "delete project", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, apperror.NotFoundf("project %s not found", projectID)
		}

		return []pipeline.Mutation{{
			TableName: "projects",
			EntityID:  projectID,
			Operation: journal.OpDelete,
			Payload:   "{}",
		}}, nil
	})
	if err != nil {
		return err
	}

	return c.NoContent(http.StatusOK)
}
