package handlers

import (
	"net/http"

	"github.com/dylangardner/userctl/pkg/registry"
)

// HealthHandler handles the ambient liveness/readiness endpoints.
//
// These endpoints are unauthenticated — D-Bus's own peer credential checks
// gate the Manager RPC surface; this HTTP surface exists only for
// orchestrators (systemd, Kubernetes) to probe process health.
type HealthHandler struct {
	registry *registry.Registry
}

// NewHealthHandler creates a new health handler.
//
// The registry parameter may be nil, in which case Readiness reports
// unhealthy.
func NewHealthHandler(registry *registry.Registry) *HealthHandler {
	return &HealthHandler{registry: registry}
}

// Liveness handles GET /health - simple liveness probe.
//
// Returns 200 OK as long as the process is running and the HTTP server is
// responsive; it does not depend on the class registry.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "userctld",
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK once the class registry has completed its initial load;
// returns 503 Service Unavailable if the registry was never initialized.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("registry not initialized"))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]interface{}{
		"class_dir":      h.registry.Dir(),
		"classes_loaded": h.registry.Count(),
	}))
}
