package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	databaseCheckName  = "database"
	healthCheckTimeout = 2 * time.Second
)

// HealthCheckFunc probes a dependency.
type HealthCheckFunc func(ctx context.Context) error

type namedCheck struct {
	name  string
	check HealthCheckFunc
}

// HealthOption configures a HealthHandler.
type HealthOption func(*HealthHandler)

// WithDatabaseCheck registers the database probe reported in the database field.
func WithDatabaseCheck(check HealthCheckFunc) HealthOption {
	return WithReadinessCheck(databaseCheckName, check)
}

// WithReadinessCheck registers an additional named dependency probe.
func WithReadinessCheck(name string, check HealthCheckFunc) HealthOption {
	return func(h *HealthHandler) {
		if name != "" && check != nil {
			h.checks = append(h.checks, namedCheck{name: name, check: check})
		}
	}
}

// HealthHandler exposes liveness information and the service index.
type HealthHandler struct {
	name      string
	version   string
	startedAt time.Time
	checks    []namedCheck
}

// NewHealthHandler builds a new health handler instance.
func NewHealthHandler(name, version string, opts ...HealthOption) *HealthHandler {
	h := &HealthHandler{name: name, version: version, startedAt: time.Now().UTC()}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Status godoc
// @Summary Service health check
// @Description Pings the database and other configured dependencies.
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 500 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:    "ok",
		Database:  "not_configured",
		StartedAt: h.startedAt,
	}

	for _, nc := range h.checks {
		if nc.name == databaseCheckName {
			resp.Database = "connected"
		}
		state := "ok"
		if err := nc.check(ctx); err != nil {
			_ = c.Error(err)
			state = "error"
			resp.Status = "error"
			if nc.name == databaseCheckName {
				resp.Database = "disconnected"
			}
		}
		if nc.name != databaseCheckName {
			if resp.Checks == nil {
				resp.Checks = make(map[string]string, len(h.checks))
			}
			resp.Checks[nc.name] = state
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusInternalServerError
	}
	c.JSON(status, resp)
}

// Index lists the public endpoints.
func (h *HealthHandler) Index(c *gin.Context) {
	c.JSON(http.StatusOK, IndexResponse{
		Name:    h.name,
		Version: h.version,
		Endpoints: map[string]string{
			"health":         "GET /health",
			"metrics":        "GET /metrics",
			"register":       "POST /auth/register",
			"login":          "POST /auth/login",
			"verify":         "GET /auth/verify",
			"me":             "GET /auth/me",
			"request_reset":  "POST /auth/password/request-reset",
			"verify_code":    "POST /auth/password/verify-code",
			"reset_password": "POST /auth/password/reset-password",
			"resend_code":    "POST /auth/password/resend-code",
		},
	})
}
