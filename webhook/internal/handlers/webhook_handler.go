package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/paystream-labs/paystream/common/httputil"
	"github.com/paystream-labs/paystream/common/logging"
	"github.com/paystream-labs/paystream/common/vault"
	"github.com/paystream-labs/paystream/webhook/internal/metrics"
	"github.com/paystream-labs/paystream/webhook/internal/ratelimit"
	"github.com/paystream-labs/paystream/webhook/internal/service"
	"github.com/paystream-labs/paystream/webhook/pkg/verifier"
)

// maxBodyBytes caps webhook payload size. Providers send small JSON bodies;
// anything larger is hostile or misrouted.
const maxBodyBytes = 1 << 20

// WebhookHandler receives provider deliveries on POST /webhooks/{provider}.
type WebhookHandler struct {
	service  *service.IngestService
	registry *verifier.Registry
	limiter  ratelimit.RateLimiter
	logger   *logging.Logger
}

func NewWebhookHandler(svc *service.IngestService, registry *verifier.Registry, limiter ratelimit.RateLimiter, logger *logging.Logger) *WebhookHandler {
	return &WebhookHandler{
		service:  svc,
		registry: registry,
		limiter:  limiter,
		logger:   logger,
	}
}

// HandleDelivery processes one provider delivery. The raw body is read
// before any parsing so signature verification sees exactly the bytes the
// provider signed.
func (h *WebhookHandler) HandleDelivery(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	allowed, err := h.limiter.Allow(r.Context(), provider)
	if err != nil {
		// Rate limiter outage must not drop provider deliveries.
		h.logger.ErrorContext(r.Context(), "rate limiter check failed",
			logging.Provider(provider), logging.Error(err))
	} else if !allowed {
		metrics.WebhooksTotal.WithLabelValues(provider, "rate_limited").Inc()
		h.logger.WarnContext(r.Context(), "webhook delivery rate limited",
			logging.Provider(provider), logging.IP(getClientIP(r)))
		httputil.WriteError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		metrics.WebhooksTotal.WithLabelValues(provider, "read_error").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	if len(body) > maxBodyBytes {
		metrics.WebhooksTotal.WithLabelValues(provider, "too_large").Inc()
		httputil.WriteError(w, http.StatusRequestEntityTooLarge, "payload too large")
		return
	}
	if len(body) == 0 {
		metrics.WebhooksTotal.WithLabelValues(provider, "empty").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "empty request body")
		return
	}
	metrics.WebhookBytesTotal.Add(float64(len(body)))

	signature := h.extractSignature(r, provider)

	result, err := h.service.Ingest(r.Context(), provider, signature, body)
	if err != nil {
		h.writeIngestError(w, r, provider, err)
		return
	}

	metrics.WebhooksTotal.WithLabelValues(provider, "accepted").Inc()
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"received": true,
		"eventId":  result.EventID,
	})
}

// extractSignature pulls the signature off the header the provider's
// verification strategy names. Providers that embed their credential in the
// body declare no header; the verifier reads it from the payload instead.
func (h *WebhookHandler) extractSignature(r *http.Request, provider string) string {
	if v, ok := h.registry.Lookup(provider); ok {
		if header := v.SignatureHeader(); header != "" {
			return r.Header.Get(header)
		}
		return ""
	}
	// No registered strategy; fall back to a generic header.
	return r.Header.Get("X-Webhook-Signature")
}

// writeIngestError maps pipeline errors onto HTTP statuses. Configuration
// faults (missing or undecryptable secrets) return 500 so the provider keeps
// retrying until an operator fixes the integration; verification faults
// return 400 because retrying an unverifiable delivery can never succeed.
func (h *WebhookHandler) writeIngestError(w http.ResponseWriter, r *http.Request, provider string, err error) {
	switch {
	case errors.Is(err, service.ErrUnknownProvider):
		metrics.WebhooksTotal.WithLabelValues(provider, "unknown_provider").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "unknown provider")

	case errors.Is(err, service.ErrUnsupportedProvider):
		metrics.WebhooksTotal.WithLabelValues(provider, "unsupported_provider").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "unsupported provider")

	case errors.Is(err, service.ErrInvalidSignature):
		metrics.WebhooksTotal.WithLabelValues(provider, "invalid_signature").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "signature verification failed")

	case errors.Is(err, service.ErrInvalidPayload):
		metrics.WebhooksTotal.WithLabelValues(provider, "invalid_payload").Inc()
		httputil.WriteError(w, http.StatusBadRequest, "malformed payload")

	case errors.Is(err, service.ErrMissingSecret):
		metrics.WebhooksTotal.WithLabelValues(provider, "missing_secret").Inc()
		h.logger.ErrorContext(r.Context(), "webhook rejected: no secret configured",
			logging.Provider(provider))
		httputil.WriteError(w, http.StatusInternalServerError, "integration not configured")

	case errors.Is(err, vault.ErrDecrypt):
		metrics.WebhooksTotal.WithLabelValues(provider, "decrypt_error").Inc()
		httputil.WriteError(w, http.StatusInternalServerError, "integration credential error")

	default:
		metrics.WebhooksTotal.WithLabelValues(provider, "error").Inc()
		h.logger.ErrorContext(r.Context(), "webhook ingestion failed",
			logging.Provider(provider), logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal error")
	}
}

// Health reports process liveness.
func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// Ready reports whether the service can accept deliveries.
func (h *WebhookHandler) Ready(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
