package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/storefront/internal/identity/store"
	"github.com/aussiebroadwan/storefront/pkg/authsdk"
	"github.com/aussiebroadwan/storefront/pkg/httpx"
	"github.com/aussiebroadwan/storefront/pkg/jwtx"
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
//	@Description	Checks the database and that signing keys are loaded.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse
//	@Failure		503	{object}	authsdk.HealthResponse
//	@Router			/readyz [get].
func ReadyzHandler(st store.Store, keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{"database": "ok", "signer": "ok"}
		status, code := "ok", http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks["database"] = "error: " + err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}
		if !keys.IsReady() {
			checks["signer"] = "error: no keys loaded"
			status, code = "degraded", http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, authsdk.HealthResponse{Status: status, Checks: checks})
	}
}

// JWKSHandler godoc
//
//	@Summary		JSON Web Key Set
//	@Description	Public keys that verify access tokens.
//	@Tags			well-known
//	@Produce		json
//	@Success		200	{object}	jwtx.JWKS
//	@Router			/.well-known/jwks.json [get].
func JWKSHandler(keys *jwtx.KeySet) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, keys.PublicJWKS())
	}
}
