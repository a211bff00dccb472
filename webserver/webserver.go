package webserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"InactivityBot/logger"
	"InactivityBot/metrics"

	"github.com/gorilla/mux"
)

const homePage = `<!DOCTYPE html>
<html>
<head><title>InactivityBot</title></head>
<body><h1>InactivityBot is running</h1></body>
</html>
`

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// NewRouter builds the liveness, health and metrics routes.
func NewRouter(dbCheck HealthCheck) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", HomeHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", HealthHandler(dbCheck)).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	return r
}

// Start serves the router on port in the background.
func Start(port string, dbCheck HealthCheck) *http.Server {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(dbCheck),
		ReadHeaderTimeout: 20 * time.Second,
	}

	go func() {
		logger.Log.Infof("Web server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Error("Web server stopped")
		}
	}()

	return server
}

func HomeHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(homePage))
}

func HealthHandler(dbCheck HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		resp := healthResponse{Status: "ok", Database: "ok"}
		status := http.StatusOK
		if dbCheck != nil {
			if err := dbCheck(ctx); err != nil {
				logger.Log.WithError(err).Warn("Health check failed")
				resp.Status = "degraded"
				resp.Database = "unreachable"
				status = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Log.WithError(err).Error("Error encoding health response")
		}
	}
}
