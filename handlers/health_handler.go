package handlers

import (
	"net/http"
	"time"

	"github.com/upb/site-control-plane/app"
	"github.com/upb/site-control-plane/utils"
	"go.uber.org/zap"
)

// HealthCheck reports liveness
func HealthCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// ReadinessCheck reports readiness, including the storage backend
func ReadinessCheck(deps *app.Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.HealthCheck(r.Context()); err != nil {
			deps.Logger.Warn("readiness check failed", zap.Error(err))
			_ = utils.WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
			})
			return
		}
		_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status": "healthy",
		})
	}
}
