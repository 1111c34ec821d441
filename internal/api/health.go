package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/stillpoint/drip/internal/pkg/httputil"
)

// EngineStatus is the slice of sequence.Engine the health endpoint reads.
type EngineStatus interface {
	IsHealthy() bool
	LastRunAt() time.Time
}

// HealthChecker probes each dependency. Nil members are reported as
// "disabled" rather than failing the check.
type HealthChecker struct {
	DB     *sql.DB
	Redis  *redis.Client
	Engine EngineStatus
}

// HealthCheck reports per-component status. Overall status is "degraded"
// when any enabled component fails; the HTTP status stays 200 so load
// balancers keep routing while operators investigate. 503 is reserved
// for a dead database, without which no request can be served.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	components := map[string]string{}
	status := http.StatusOK
	overall := "ok"

	if h.health == nil {
		httputil.OK(w, map[string]interface{}{"status": overall})
		return
	}

	if h.health.DB != nil {
		if err := h.health.DB.PingContext(ctx); err != nil {
			components["database"] = "down: " + err.Error()
			overall = "degraded"
			status = http.StatusServiceUnavailable
		} else {
			components["database"] = "ok"
		}
	} else {
		components["database"] = "disabled"
	}

	if h.health.Redis != nil {
		if err := h.health.Redis.Ping(ctx).Err(); err != nil {
			components["redis"] = "down: " + err.Error()
			overall = "degraded"
		} else {
			components["redis"] = "ok"
		}
	} else {
		components["redis"] = "disabled"
	}

	if h.health.Engine != nil {
		if h.health.Engine.IsHealthy() {
			components["engine"] = "ok"
		} else {
			components["engine"] = "unhealthy"
			overall = "degraded"
		}
		if last := h.health.Engine.LastRunAt(); !last.IsZero() {
			components["engine_last_run"] = last.UTC().Format(time.RFC3339)
		}
	} else {
		components["engine"] = "disabled"
	}

	httputil.JSON(w, status, map[string]interface{}{
		"status":     overall,
		"components": components,
	})
}
