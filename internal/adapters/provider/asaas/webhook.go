package asaas

import (
	"fmt"

	"github.com/shopspring/decimal"

	"donation-gateway/internal/core/domain"
)

// WebhookPayment is the `payment` object Asaas posts with PAYMENT_* events.
// customer is only an id here; value is in major units.
type WebhookPayment struct {
	ID                string             `json:"id"`
	Customer          string             `json:"customer"`
	Value             decimal.Decimal    `json:"value"`
	BillingType       string             `json:"billingType"`
	Status            string             `json:"status"`
	ExternalReference string             `json:"externalReference"`
	Chargeback        *webhookChargeback `json:"chargeback,omitempty"`
}

type webhookChargeback struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type eventMapping struct {
	eventType string
	status    string
}

var webhookEvents = map[string]eventMapping{
	"PAYMENT_CREATED":                      {domain.EventTransactionStatusChanged, "waiting_payment"},
	"PAYMENT_UPDATED":                      {domain.EventTransactionStatusChanged, "waiting_payment"},
	"PAYMENT_AWAITING_RISK_ANALYSIS":       {domain.EventTransactionStatusChanged, "processing"},
	"PAYMENT_APPROVED_BY_RISK_ANALYSIS":    {domain.EventTransactionStatusChanged, "processing"},
	"PAYMENT_AUTHORIZED":                   {domain.EventTransactionStatusChanged, "authorized"},
	"PAYMENT_CONFIRMED":                    {domain.EventTransactionStatusChanged, "paid"},
	"PAYMENT_RECEIVED":                     {domain.EventTransactionStatusChanged, "paid"},
	"PAYMENT_REFUND_IN_PROGRESS":           {domain.EventTransactionStatusChanged, "pending_refund"},
	"PAYMENT_REFUNDED":                     {domain.EventTransactionStatusChanged, "refunded"},
	"PAYMENT_PARTIALLY_REFUNDED":           {domain.EventTransactionStatusChanged, "refunded"},
	"PAYMENT_CREDIT_CARD_CAPTURE_REFUSED":  {domain.EventTransactionStatusChanged, "refused"},
	"PAYMENT_REPROVED_BY_RISK_ANALYSIS":    {domain.EventTransactionStatusChanged, "refused"},
	"PAYMENT_CHARGEBACK_REQUESTED":         {domain.EventChargebackCreated, ""},
	"PAYMENT_CHARGEBACK_DISPUTE":           {domain.EventChargebackUpdated, ""},
	"PAYMENT_AWAITING_CHARGEBACK_REVERSAL": {domain.EventChargebackUpdated, ""},
}

// TranslateWebhook turns a native Asaas payment event into the gateway's event vocabulary.
// Events without a mapping keep their Asaas name and are ignored by the reconciler.
func TranslateWebhook(event string, p WebhookPayment) (domain.WebhookEvent, error) {
	amount, err := domain.MinorUnits(p.Value)
	if err != nil {
		return domain.WebhookEvent{}, fmt.Errorf("payment %s value %s: %w", p.ID, p.Value, err)
	}

	tx := domain.WebhookTransaction{
		ID:            p.ID,
		Status:        p.Status,
		PaymentMethod: p.BillingType,
		Amount:        amount,
	}
	if p.Chargeback != nil {
		tx.Chargeback = &domain.WebhookChargeback{Reason: p.Chargeback.Reason}
	}

	out := domain.WebhookEvent{
		EventType:             event,
		ProviderTransactionID: p.ID,
		Status:                p.Status,
		Payload:               tx,
	}
	if m, ok := webhookEvents[event]; ok {
		out.EventType = m.eventType
		if m.status != "" {
			out.Status = m.status
			out.Payload.Status = m.status
		}
	}
	return out, nil
}
