package http

import (
	"net/http"
	"time"

	"github.com/s4hq/s4/internal/s4/store"
	"github.com/s4hq/s4/pkg/httpx"
)

type healthResponse struct {
	Status   string `json:"status"`
	Uptime   string `json:"uptime"`
	Version  string `json:"version"`
	Database string `json:"database,omitempty"`
}

// LivezHandler is the liveness probe: 200 whenever the process is up.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, healthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler is the readiness probe: 503 while the database is unreachable.
func ReadyzHandler(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		database := "ok"
		code := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			status = "degraded"
			database = "error: " + err.Error()
			code = http.StatusServiceUnavailable
		}

		httpx.WriteJSON(w, code, healthResponse{
			Status:   status,
			Database: database,
		})
	}
}

// TestRouteHandler is the connectivity smoke check the clients poll.
func TestRouteHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteSuccess(w, "connection established")
	}
}
