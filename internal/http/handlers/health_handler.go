package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/abhishek00112233/LMS-Backend/internal/logger"
)

// Pinger is a store that can report reachability.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// statser is implemented by SQL-backed stores.
type statser interface {
	Stats() sql.DBStats
}

// HealthHandler serves liveness endpoints.
type HealthHandler struct {
	store Pinger
}

// NewHealthHandler creates the handler.
func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Root handles GET /.
func (h *HealthHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, "LMS Backend is running")
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	checks := make(map[string]string)
	status := "healthy"

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.store.PingContext(ctx); err != nil {
		logger.Log.WithError(err).Error("health: store ping failed")
		checks["store"] = "unhealthy"
		status = "unhealthy"
	} else {
		checks["store"] = "healthy"
	}

	if s, ok := h.store.(statser); ok {
		stats := s.Stats()
		if stats.MaxOpenConnections > 0 && stats.OpenConnections >= stats.MaxOpenConnections {
			checks["connection_pool"] = "warning: pool exhausted"
		} else {
			checks["connection_pool"] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
	})
}
