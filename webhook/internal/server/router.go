package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/paystream-labs/paystream/common/middleware"
	"github.com/paystream-labs/paystream/webhook/internal/handlers"
)

// NewRouter constructs a ServeMux with webhook and operator API routes
// registered.
func NewRouter(wh *handlers.WebhookHandler, ah *handlers.AdminHandler, auth *middleware.AdminAuth) http.Handler {
	mux := http.NewServeMux()

	// Provider delivery endpoint
	mux.HandleFunc("POST /webhooks/{provider}", wh.HandleDelivery)

	// Operator API
	mux.HandleFunc("GET /admin/events", auth.RequireToken(ah.ListEvents))
	mux.HandleFunc("GET /admin/events/{id}", auth.RequireToken(ah.GetEvent))
	mux.HandleFunc("POST /admin/events/{id}/retry", auth.RequireToken(ah.RetryEvent))

	// Health endpoints
	mux.HandleFunc("/healthz", wh.Health)
	mux.HandleFunc("/readyz", wh.Ready)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
