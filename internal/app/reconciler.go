package app

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/observability"
)

// Reconciler maps provider webhook events to notifications. It has no side effects:
// the same event always yields the same notification, idempotency key included.
type Reconciler struct {
	logger *slog.Logger
}

func NewReconciler(logger *slog.Logger) *Reconciler {
	return &Reconciler{logger: logger}
}

// ParseWebhookStatus translates the status strings carried by webhooks.
func ParseWebhookStatus(raw string) (domain.ChargeStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "paid", "received", "confirmed":
		return domain.StatusPaid, true
	case "refunded":
		return domain.StatusRefunded, true
	case "refused", "declined", "failed":
		return domain.StatusRefused, true
	case "authorized":
		return domain.StatusAuthorized, true
	case "processing", "pending_refund", "refund_requested", "analyzing":
		return domain.StatusProcessing, true
	case "pending", "waiting_payment":
		return domain.StatusPending, true
	}
	return "", false
}

// Handle dispatches on the event type. Unknown events are logged and produce no notification.
func (r *Reconciler) Handle(ctx context.Context, event domain.WebhookEvent) (domain.Notification, error) {
	if strings.TrimSpace(event.ProviderTransactionID) == "" {
		return domain.Notification{}, domain.ErrMalformedWebhook
	}
	logger := observability.LoggerFrom(ctx, r.logger).With(
		"event_type", event.EventType,
		"provider_transaction_id", event.ProviderTransactionID,
	)

	var n domain.Notification
	eventLabel := event.EventType
	switch event.EventType {
	case domain.EventTransactionStatusChanged:
		n = r.statusChanged(event, logger)
	case domain.EventSubscriptionCreated:
		n = subscriptionNotification(event, domain.NotifySubscriptionCreated, logger)
	case domain.EventSubscriptionUpdated:
		n = subscriptionNotification(event, domain.NotifySubscriptionUpdated, logger)
	case domain.EventSubscriptionCanceled:
		n = subscriptionNotification(event, domain.NotifySubscriptionCanceled, logger)
	case domain.EventChargebackCreated, domain.EventChargebackUpdated:
		n = chargebackNotification(event)
	default:
		eventLabel = "unhandled"
		logger.Info("unhandled webhook event")
	}

	if !n.Empty() {
		n.EventType = event.EventType
		n.ProviderTransactionID = event.ProviderTransactionID
		n.IdempotencyKey = idempotencyKey(event, n.Kind)
		logger.Info("webhook reconciled", "notification", n.Kind, "audience", n.Audience)
	}
	observability.RecordWebhook(eventLabel, string(n.Kind))
	return n, nil
}

func (r *Reconciler) statusChanged(event domain.WebhookEvent, logger *slog.Logger) domain.Notification {
	status, ok := ParseWebhookStatus(event.Status)
	if !ok {
		logger.Warn("unknown transaction status", "status", event.Status)
		return domain.Notification{}
	}

	var kind domain.NotificationKind
	switch status {
	case domain.StatusPaid:
		kind = domain.NotifyDonationConfirmed
	case domain.StatusRefunded:
		kind = domain.NotifyRefund
	case domain.StatusRefused:
		kind = domain.NotifyPaymentFailed
	default:
		// PROCESSING, AUTHORIZED and PENDING only update internal state.
		logger.Debug("status change without donor notification", "status", status)
		return domain.Notification{}
	}

	n := domain.Notification{
		Kind:             kind,
		Audience:         domain.AudienceDonor,
		Status:           status,
		AmountMinorUnits: event.Payload.Amount,
	}
	if c := event.Payload.Customer; c != nil {
		n.RecipientName, n.RecipientEmail = c.Name, c.Email
	}
	return n
}

// subscriptionNotification addresses the donor of the subscription's current transaction.
// Without a recipient e-mail there is nobody to notify.
func subscriptionNotification(event domain.WebhookEvent, kind domain.NotificationKind, logger *slog.Logger) domain.Notification {
	current := event.Payload.CurrentTransaction
	if current == nil || current.Customer == nil || strings.TrimSpace(current.Customer.Email) == "" {
		logger.Info("subscription event without donor e-mail")
		return domain.Notification{}
	}
	n := domain.Notification{
		Kind:             kind,
		Audience:         domain.AudienceDonor,
		AmountMinorUnits: current.Amount,
		RecipientName:    current.Customer.Name,
		RecipientEmail:   strings.TrimSpace(current.Customer.Email),
	}
	if status, ok := ParseWebhookStatus(event.Status); ok {
		n.Status = status
	}
	return n
}

func chargebackNotification(event domain.WebhookEvent) domain.Notification {
	n := domain.Notification{
		Kind:             domain.NotifyChargebackAdminAlert,
		Audience:         domain.AudienceAdmin,
		AmountMinorUnits: event.Payload.Amount,
		Reason:           event.Status,
	}
	if cb := event.Payload.Chargeback; cb != nil && cb.Reason != "" {
		n.Reason = cb.Reason
	}
	return n
}

func idempotencyKey(event domain.WebhookEvent, kind domain.NotificationKind) string {
	h := sha256.New()
	for _, part := range []string{event.EventType, event.ProviderTransactionID, strings.ToLower(event.Status), string(kind)} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
