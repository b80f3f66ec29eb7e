package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telhawk-systems/capi-relay/common/middleware"
	"github.com/telhawk-systems/capi-relay/relay/internal/handlers"
)

// NewRouter constructs a ServeMux with the relay routes registered.
// A nil metricsHandler serves the default Prometheus registry.
func NewRouter(h *handlers.WebhookHandler, metricsHandler http.Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/webhook", h.HandleWebhook)

	// Health endpoints
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /healthz", h.Health)
	mux.HandleFunc("GET /readyz", h.Ready)

	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	mux.Handle("GET /metrics", metricsHandler)

	return middleware.RequestID(middleware.Recover(logger)(mux))
}
