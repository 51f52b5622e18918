package health

import (
	"net/http"
)

// HealthPath is served on the metrics port next to /metrics.
const HealthPath = "/health"

// SetupHttpMux serves checker on HealthPath of mux.
func SetupHttpMux(mux *http.ServeMux, checker Checker) {
	mux.Handle(HealthPath, NewHealthCheckHttpHandler(checker))
}
