package domain

import (
	"encoding/json"
	"time"
)

// Event types delivered by the provider.
const (
	EventTransactionStatusChanged = "transaction_status_changed"
	EventSubscriptionCreated      = "subscription_created"
	EventSubscriptionUpdated      = "subscription_updated"
	EventSubscriptionCanceled     = "subscription_canceled"
	EventChargebackCreated        = "chargeback_created"
	EventChargebackUpdated        = "chargeback_updated"
)

// WebhookEvent is a single asynchronous update from the provider. It is never persisted here.
type WebhookEvent struct {
	EventType             string
	ProviderTransactionID string
	Status                string
	Payload               WebhookTransaction
	ReceivedAt            time.Time
}

// WebhookTransaction is the `transaction` object of the inbound webhook body.
type WebhookTransaction struct {
	ID                 string              `json:"id"`
	Status             string              `json:"status"`
	PaymentMethod      string              `json:"payment_method,omitempty"`
	Amount             int64               `json:"amount,omitempty"`
	PlanID             json.RawMessage     `json:"plan_id,omitempty"`
	Customer           *WebhookCustomer    `json:"customer,omitempty"`
	CurrentTransaction *WebhookTransaction `json:"current_transaction,omitempty"`
	Chargeback         *WebhookChargeback  `json:"chargeback,omitempty"`
}

// WebhookCustomer is the customer block carried in some webhook payloads.
type WebhookCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// WebhookChargeback carries dispute details.
type WebhookChargeback struct {
	Reason string `json:"reason"`
}

// NotificationKind selects the message sent by the notification sink.
type NotificationKind string

const (
	NotifyNone                 NotificationKind = ""
	NotifyDonationConfirmed    NotificationKind = "donation_confirmed"
	NotifyRefund               NotificationKind = "refund"
	NotifyPaymentFailed        NotificationKind = "payment_failed"
	NotifySubscriptionCreated  NotificationKind = "subscription_created"
	NotifySubscriptionUpdated  NotificationKind = "subscription_updated"
	NotifySubscriptionCanceled NotificationKind = "subscription_canceled"
	NotifyChargebackAdminAlert NotificationKind = "chargeback_admin_alert"
)

// Audience is who the notification is meant for.
type Audience string

const (
	AudienceDonor Audience = "donor"
	AudienceAdmin Audience = "admin"
)

// Notification is the outcome of reconciling one webhook event.
// Kind == NotifyNone means nothing is sent.
type Notification struct {
	Kind                  NotificationKind `json:"kind"`
	Audience              Audience         `json:"audience"`
	EventType             string           `json:"event_type"`
	ProviderTransactionID string           `json:"provider_transaction_id"`
	Status                ChargeStatus     `json:"status,omitempty"`
	RecipientName         string           `json:"recipient_name,omitempty"`
	RecipientEmail        string           `json:"recipient_email,omitempty"`
	AmountMinorUnits      int64            `json:"amount_minor_units,omitempty"`
	Reason                string           `json:"reason,omitempty"`
	IdempotencyKey        string           `json:"idempotency_key"`
}

// Empty reports whether there is nothing to deliver.
func (n Notification) Empty() bool {
	return n.Kind == NotifyNone
}
