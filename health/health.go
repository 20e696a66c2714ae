package health

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type HealthCheck func() error

type healthstatus struct {
	Message string `json:"message"`
}

// New returns a handler that reports 200 while the check passes and 500 with
// the error message once it fails.
func New(log *slog.Logger, h HealthCheck) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		err := h()
		if err != nil {
			log.Error("unhealthy", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(healthstatus{Message: err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(healthstatus{Message: "OK"})
	})
}
