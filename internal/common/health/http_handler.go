package health

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// HealthCheckHttpHandler answers 204 while checker passes and 503 with the failure otherwise.
type HealthCheckHttpHandler struct {
	checker Checker
}

func NewHealthCheckHttpHandler(checker Checker) *HealthCheckHttpHandler {
	return &HealthCheckHttpHandler{
		checker: checker,
	}
}

func (h *HealthCheckHttpHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	err := h.checker.Check()
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	log.WithError(err).Warn("Health check failed")
	w.WriteHeader(http.StatusServiceUnavailable)
	if _, writeErr := w.Write([]byte(err.Error())); writeErr != nil {
		log.WithError(writeErr).Error("Failed to write health check response")
	}
}
