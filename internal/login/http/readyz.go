package http

import (
	"net/http"
	"time"

	"github.com/civicwatch/reportline/internal/login/store"
	"github.com/civicwatch/reportline/pkg/httpx"
	"github.com/civicwatch/reportline/pkg/loginsdk"
)

// ReadyzHandler is the readiness probe. It checks the database before
// reporting ready.
func ReadyzHandler(startTime time.Time, version string, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := &loginsdk.HealthChecks{
			Database: "ok",
		}
		status := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks.Database = "error: " + err.Error()
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, statusCode, loginsdk.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks:  checks,
		})
	}
}
