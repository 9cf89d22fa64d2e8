package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/zerohunger/internal/zerohunger/store"
	"github.com/aussiebroadwan/zerohunger/pkg/httpx"
	"github.com/aussiebroadwan/zerohunger/pkg/jwtx"
	"github.com/aussiebroadwan/zerohunger/pkg/zhclient"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// LivezHandler godoc
//
//	@Summary		Health Check Endpoint
//	@Description	Liveness probe returning basic service status, uptime and version.
//	@Description	Always 200 while the process is serving.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	zhclient.HealthResponse	"status, uptime, version"
//	@Router			/livez [get]
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, zhclient.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness Check Endpoint
//	@Description	Readiness probe checking the database, the session signer and, when configured, the Redis backends.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	zhclient.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	zhclient.HealthResponse	"service not ready"
//	@Router			/readyz [get]
func ReadyzHandler(
	startTime time.Time,
	version string,
	st store.Store,
	keys *jwtx.KeySet,
	sessions, locations HealthCheck,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := &zhclient.HealthChecks{
			Database:  "ok",
			Signer:    "ok",
			Sessions:  "ok",
			Locations: "ok",
		}
		status := "ok"
		code := http.StatusOK
		fail := func(field *string, msg string) {
			*field = "error: " + msg
			status = "degraded"
			code = http.StatusServiceUnavailable
		}

		if err := st.Ping(ctx); err != nil {
			fail(&checks.Database, err.Error())
		}
		if !keys.IsReady() {
			fail(&checks.Signer, "no keys loaded")
		}
		if sessions != nil {
			if err := sessions(ctx); err != nil {
				fail(&checks.Sessions, err.Error())
			}
		}
		if locations != nil {
			if err := locations(ctx); err != nil {
				fail(&checks.Locations, err.Error())
			}
		}

		httpx.WriteJSON(w, code, zhclient.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
