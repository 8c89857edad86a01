// Package http provides the Echo server bootstrap shared by the sync
// engine's entrypoint: standard middleware, health checks, graceful
// shutdown, and the error handler that maps apperror.Kind to status codes.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"deltasync/apperror"
)

// ServerConfig contains configuration for creating an Echo server.
type ServerConfig struct {
	Port            int
	Debug           bool
	BodyLimit       string // e.g., "10M"
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	RateLimit       float64 // requests per second, 0 = no limit
}

// DefaultServerConfig returns a server config with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            8080,
		Debug:           false,
		BodyLimit:       "10M",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"*"},
		RateLimit:       0,
	}
}

// NewEchoServer creates a new Echo server with standard middleware. Every
// route is bound by the server-wide WriteTimeout configured in StartServer
// except the stream endpoint, which lifts that per-connection deadline for
// itself via http.ResponseController (it is expected to live for
// minutes-to-hours per spec §5, §4.H) before writing anything.
func NewEchoServer(config ServerConfig, log *logrus.Logger) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.HidePort = true
	e.Debug = config.Debug
	e.HTTPErrorHandler = customHTTPErrorHandler(log)

	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "[${time_rfc3339}] ${status} ${method} ${uri} (${latency_human}) id=${id}\n",
	}))
	e.Use(middleware.Recover())

	if config.BodyLimit != "" {
		e.Use(middleware.BodyLimit(config.BodyLimit))
	}

	if len(config.AllowedOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: config.AllowedOrigins,
			AllowMethods: []string{
				http.MethodGet,
				http.MethodPost,
				http.MethodPut,
				http.MethodDelete,
				http.MethodPatch,
				http.MethodOptions,
			},
			AllowHeaders: []string{
				echo.HeaderOrigin,
				echo.HeaderContentType,
				echo.HeaderAccept,
				echo.HeaderAuthorization,
			},
		}))
	}

	e.Use(middleware.RequestID())

	if config.RateLimit > 0 {
		e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(
			rate.Limit(config.RateLimit),
		)))
	}

	return e
}

// HealthResponse represents a health check response.
type HealthResponse struct {
	Status  string                 `json:"status"`
	Service string                 `json:"service,omitempty"`
	Version string                 `json:"version,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HealthCheckHandlerWithDetails returns a health check handler reporting
// whatever detailsFunc computes — tenant-cache occupancy and coordination
// service reachability, for this service (SUPPLEMENTED FEATURES item 3).
func HealthCheckHandlerWithDetails(serviceName, version string, detailsFunc func() map[string]interface{}) echo.HandlerFunc {
	return func(c echo.Context) error {
		details := make(map[string]interface{})
		if detailsFunc != nil {
			details = detailsFunc()
		}
		return c.JSON(http.StatusOK, HealthResponse{
			Status:  "healthy",
			Service: serviceName,
			Version: version,
			Details: details,
		})
	}
}

// StartServer starts an Echo server with the configured timeouts.
func StartServer(e *echo.Echo, config ServerConfig, log *logrus.Logger) error {
	s := &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}
	log.WithField("port", config.Port).Info("starting server")
	return e.StartServer(s)
}

// GracefulShutdown stops accepting new requests and drains in-flight
// handlers within timeout (spec §6 CLI surface: SIGINT/SIGTERM handling).
func GracefulShutdown(e *echo.Echo, timeout time.Duration, log *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	log.Info("shutting down server gracefully")
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("server stopped")
	return nil
}

// ErrorResponse is the JSON body every rejected request receives.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// customHTTPErrorHandler maps apperror.Kind (spec §7) and echo.HTTPError to
// status codes, so handlers return errors and never write status codes
// themselves.
func customHTTPErrorHandler(log *logrus.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := err.Error()

		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			code = appErr.Kind.Status()
			message = appErr.Message
		} else if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if msg, ok := he.Message.(string); ok {
				message = msg
			}
		}

		if c.Request().Context().Err() != nil {
			// Client scope was cancelled mid-request (§7 Cancelled):
			// no response body is guaranteed.
			return
		}

		if c.Response().Committed {
			return
		}

		var sendErr error
		if c.Request().Method == http.MethodHead {
			sendErr = c.NoContent(code)
		} else {
			sendErr = c.JSON(code, ErrorResponse{
				Error:   http.StatusText(code),
				Message: message,
			})
		}
		if sendErr != nil {
			log.WithError(sendErr).Warn("failed to write error response")
		}
	}
}
