package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/identity-service/internal/response"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler reports whether the service and its backing stores are
// reachable.  Load balancers use it; it is always public.
type HealthHandler struct {
	DB  Pinger
	RDB *redis.Client // optional; nil means Redis is not configured
}

func NewHealthHandler(db Pinger, rdb *redis.Client) *HealthHandler {
	return &HealthHandler{DB: db, RDB: rdb}
}

// Health: GET /healthz.  200 when every configured dependency answers a
// ping, 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{}
	healthy := true
	if h.DB != nil {
		checks["database"] = "up"
		if err := h.DB.PingContext(ctx); err != nil {
			checks["database"] = "down"
			healthy = false
		}
	}
	if h.RDB == nil {
		checks["redis"] = "disabled"
	} else {
		checks["redis"] = "up"
		if err := h.RDB.Ping(ctx).Err(); err != nil {
			checks["redis"] = "down"
			healthy = false
		}
	}
	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, response.Envelope{
			StatusCode: http.StatusServiceUnavailable,
			Message:    "Service unavailable",
			Data:       checks,
			Timestamp:  time.Now().UTC().Format(time.RFC3339),
		})
	}
	return response.OK(c, "ok", checks)
}
