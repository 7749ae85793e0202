package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/storefront/internal/storefront/store"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
)

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always returns 200 OK while the process is serving.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status: "ok",
			Checks: map[string]string{
				"uptime":  time.Since(startTime).Round(time.Second).String(),
				"version": version,
			},
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Checks the database and that the identity provider is ready.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Failure		503	{object}	authsdk.HealthResponse
//	@Router			/readyz [get].
func ReadyzHandler(st store.Store, identity AuthProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok", "identity": "ok"}
		status, code := "ok", http.StatusOK

		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			checks["database"] = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}
		if _, err := identity.GetReadiness(ctx); err != nil {
			checks["identity"] = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{Status: status, Checks: checks})
	}
}
