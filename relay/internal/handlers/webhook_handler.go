// Package handlers implements the relay's HTTP endpoints.
package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"

	"github.com/telhawk-systems/capi-relay/common/httputil"
	"github.com/telhawk-systems/capi-relay/common/logging"
	"github.com/telhawk-systems/capi-relay/relay/internal/metrics"
	"github.com/telhawk-systems/capi-relay/relay/internal/payload"
	"github.com/telhawk-systems/capi-relay/relay/internal/routing"
	"github.com/telhawk-systems/capi-relay/relay/internal/service"
	"github.com/telhawk-systems/capi-relay/relay/internal/userdata"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "Meta CAPI Tracking"

// DefaultMaxBodyBytes caps webhook bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// Response messages.
const (
	msgNoPayload     = "No JSON payload received"
	msgMissingEvent  = "Missing 'event' field"
	msgInternalError = "Internal Server Error"
	msgTooLarge      = "Payload too large"
	msgNotAllowed    = "Method not allowed"
	msgProcessed     = "Event processed"
)

// Processor handles decoded webhook payloads.
type Processor interface {
	Process(ctx context.Context, p payload.Payload, t userdata.Transport) (*service.Outcome, error)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// WebhookHandler serves the webhook, health and readiness endpoints.
type WebhookHandler struct {
	processor    Processor
	metrics      *metrics.Metrics
	logger       *logging.Logger
	maxBodyBytes int64
	checks       map[string]Check
}

// NewWebhookHandler creates a handler. A nil m disables metrics; a
// non-positive maxBodyBytes uses DefaultMaxBodyBytes.
func NewWebhookHandler(processor Processor, m *metrics.Metrics, logger *logging.Logger, maxBodyBytes int64) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if maxBodyBytes <= 0 {
		maxBodyBytes = DefaultMaxBodyBytes
	}
	return &WebhookHandler{
		processor:    processor,
		metrics:      m,
		logger:       logger,
		maxBodyBytes: maxBodyBytes,
		checks:       make(map[string]Check),
	}
}

// AddCheck registers a readiness check under name.
func (h *WebhookHandler) AddCheck(name string, check Check) {
	h.checks[name] = check
}

// HandleWebhook accepts one upstream event and forwards its conversions.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		httputil.WriteError(w, http.StatusMethodNotAllowed, msgNotAllowed)
		return
	}

	log := h.logger.WithContext(r.Context())

	body, err := httputil.ReadBody(w, r, h.maxBodyBytes)
	if err != nil {
		if errors.Is(err, httputil.ErrPayloadTooLarge) {
			h.observe("", metrics.StatusTooLarge)
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, msgTooLarge)
			return
		}
		log.Warn("failed to read webhook body", logging.Error(err))
		h.observe("", metrics.StatusBadRequest)
		httputil.WriteError(w, http.StatusBadRequest, msgNoPayload)
		return
	}
	if h.metrics != nil {
		h.metrics.WebhookBytes(len(body))
	}

	if len(bytes.TrimSpace(body)) == 0 {
		h.observe("", metrics.StatusBadRequest)
		httputil.WriteError(w, http.StatusBadRequest, msgNoPayload)
		return
	}

	p, err := payload.Decode(body)
	if err != nil || len(p) == 0 {
		h.observe("", metrics.StatusBadRequest)
		httputil.WriteError(w, http.StatusBadRequest, msgNoPayload)
		return
	}

	// Sends run to completion even if the caller disconnects; the outbound
	// client timeout bounds them.
	outcome, err := h.processor.Process(context.WithoutCancel(r.Context()), p, userdata.TransportFromRequest(r))
	var eventType string
	if outcome != nil {
		eventType = outcome.EventType
	}
	switch {
	case errors.Is(err, service.ErrMissingEvent):
		h.observe("", metrics.StatusBadRequest)
		httputil.WriteError(w, http.StatusBadRequest, msgMissingEvent)
		return
	case err != nil:
		log.Error("webhook processing failed", logging.EventType(eventType), logging.Error(err))
		h.observe(eventType, metrics.StatusError)
		httputil.WriteError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	if outcome.Status == service.StatusIgnored {
		h.observe(eventType, metrics.StatusIgnored)
		httputil.WriteStatus(w, service.StatusIgnored, fmt.Sprintf("Event %s not mapped", outcome.EventType))
		return
	}

	h.observe(eventType, metrics.StatusSuccess)
	httputil.WriteStatus(w, service.StatusSuccess, msgProcessed)
}

// Health always reports healthy while the process serves requests.
func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// Ready runs the registered checks and reports 503 when any fails.
func (h *WebhookHandler) Ready(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](r.Context()); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	body := map[string]interface{}{"status": "ready", "checks": results}
	if status != http.StatusOK {
		body["status"] = "not_ready"
	}
	httputil.WriteJSON(w, status, body)
}

// observe counts a webhook. Unmapped types share one label value to keep
// cardinality bounded.
func (h *WebhookHandler) observe(eventType, status string) {
	if h.metrics == nil {
		return
	}
	if eventType != "" && !routing.Mapped(eventType) {
		eventType = "other"
	}
	h.metrics.WebhookReceived(eventType, status)
}
