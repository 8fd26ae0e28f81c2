package http

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"donation-gateway/internal/adapters/provider/asaas"
	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
	"donation-gateway/internal/observability"
)

// WebhookTokenHeader is where Asaas sends the token configured for the webhook.
const WebhookTokenHeader = "asaas-access-token"

// WebhookHandler receives provider callbacks.
type WebhookHandler struct {
	service ports.WebhookService
	token   string
	logger  *slog.Logger
	now     func() time.Time
}

// NewWebhookHandler creates the handler. An empty token disables the token check.
func NewWebhookHandler(service ports.WebhookService, token string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, token: token, logger: logger, now: time.Now}
}

// webhookRequest accepts the gateway's own format (`transaction`) and native Asaas
// payment events (`payment`).
type webhookRequest struct {
	EventType   string                     `json:"eventType"`
	Event       string                     `json:"event"`
	Transaction *domain.WebhookTransaction `json:"transaction"`
	Payment     *asaas.WebhookPayment      `json:"payment"`
}

type webhookResponse struct {
	Received     bool   `json:"received"`
	Notification string `json:"notification,omitempty"`
}

func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)

	if h.token != "" && subtle.ConstantTimeCompare([]byte(r.Header.Get(WebhookTokenHeader)), []byte(h.token)) != 1 {
		logger.Warn("webhook rejected", "error", domain.ErrInvalidWebhookToken)
		writeJSONError(w, "invalid webhook token", http.StatusUnauthorized, logger)
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest, logger)
		return
	}

	eventType := req.EventType
	if eventType == "" {
		eventType = req.Event
	}

	var event domain.WebhookEvent
	switch {
	case req.Transaction != nil:
		event = domain.WebhookEvent{
			EventType:             eventType,
			ProviderTransactionID: req.Transaction.ID,
			Status:                req.Transaction.Status,
			Payload:               *req.Transaction,
		}
	case req.Payment != nil:
		translated, err := asaas.TranslateWebhook(eventType, *req.Payment)
		if err != nil {
			logger.Warn("webhook rejected", "event_type", eventType, "error", err)
			writeJSONError(w, "invalid request body", http.StatusBadRequest, logger)
			return
		}
		event = translated
	default:
		event = domain.WebhookEvent{EventType: eventType}
	}
	event.ReceivedAt = h.now().UTC()

	n, err := h.service.Process(r.Context(), event)
	if err != nil {
		if errors.Is(err, domain.ErrMalformedWebhook) {
			writeJSONError(w, "transaction id is required", http.StatusBadRequest, logger)
			return
		}
		// 500 makes the provider re-deliver.
		logger.Error("webhook processing failed", "event_type", event.EventType, "provider_transaction_id", event.ProviderTransactionID, "error", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError, logger)
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{Received: true, Notification: string(n.Kind)}, logger)
}
