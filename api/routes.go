package api

import (
	"github.com/labstack/echo/v4"

	"deltasync/identity"
	"deltasync/notifybus"
	"deltasync/pipeline"
	"deltasync/security"
	"deltasync/tenant"
)

// Handlers aggregates every dependency the route table needs to construct
// its handlers.
type Handlers struct {
	Auth     *AuthHandlers
	Sync     *SyncHandlers
	Stream   *StreamHandlers
	Projects *ProjectHandlers
}

// NewHandlers wires the engine's collaborators into the concrete handler set.
func NewHandlers(jwt *security.JWTService, stores *tenant.Manager, bus *notifybus.Bus, pipe *pipeline.Pipeline) *Handlers {
	return &Handlers{
		Auth:     &AuthHandlers{JWT: jwt},
		Sync:     &SyncHandlers{Stores: stores},
		Stream:   &StreamHandlers{Bus: bus},
		Projects: &ProjectHandlers{Pipeline: pipe},
	}
}

// SetupRoutes registers every route, public and Identity-Context-protected,
// per spec.md §6: any path prefixed /api/auth/ is public, everything else
// under /api/* plus the stream endpoint requires a valid bearer token.
func SetupRoutes(e *echo.Echo, h *Handlers, jwtSecret []byte) {
	auth := e.Group("/api/auth")
	auth.POST("/token", h.Auth.IssueToken)

	protected := e.Group("")
	protected.Use(identity.Middleware(jwtSecret))

	protected.GET("/api/sync", h.Sync.GetDeltas)
	protected.GET("/sse/events", h.Stream.Events)

	protected.POST("/api/projects", h.Projects.CreateProject)
	protected.PUT("/api/projects/:id", h.Projects.RenameProject)
	protected.DELETE("/api/projects/:id", h.Projects.DeleteProject)
}
