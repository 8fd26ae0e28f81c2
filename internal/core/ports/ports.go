package ports

import (
	"context"

	"donation-gateway/internal/core/domain"
)

// PaymentProvider is the capability set every concrete provider variant implements.
// Only adapters behind this port ever see provider-native shapes.
type PaymentProvider interface {
	Name() string
	// FindCustomerByTaxID returns nil, nil when the provider has no customer for the document.
	FindCustomerByTaxID(ctx context.Context, taxID string) (*domain.CustomerRef, error)
	CreateCustomer(ctx context.Context, customer domain.Customer, externalReference string) (*domain.CustomerRef, error)
	TokenizeCard(ctx context.Context, req CardTokenRequest) (*CardToken, error)
	CreateCharge(ctx context.Context, req ChargeRequest) (*domain.ChargeResult, error)
}

// CardTokenRequest is the only payload allowed to carry raw card data.
type CardTokenRequest struct {
	CustomerRef string
	Customer    domain.Customer
	Card        domain.CardDetails
	RemoteIP    string
}

// CardToken is a short-lived provider credential standing in for the card.
type CardToken struct {
	Token string
	Brand string
	Last4 string
}

// ChargeRequest is what gets sent to charge creation. It has no raw card fields.
type ChargeRequest struct {
	CustomerRef       string
	Instrument        domain.Instrument
	AmountMinorUnits  int64
	DueDate           string
	Description       string
	ExternalReference string
	InstallmentCount  int
	CardToken         string
	RemoteIP          string
	Metadata          map[string]string
}

// NotificationSink delivers reconciled notifications (e-mail, admin alerts). Deduplication of
// redelivered events is the sink's responsibility.
type NotificationSink interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// ChargeRecorder optionally keeps the providerTransactionId -> donation mapping outside the process.
type ChargeRecorder interface {
	SaveCharge(ctx context.Context, intent domain.PaymentIntent, charge domain.ChargeResult) error
	UpdateStatus(ctx context.Context, providerTransactionID string, status domain.ChargeStatus) error
}

// DonationService is the incoming port for donation submissions.
type DonationService interface {
	Submit(ctx context.Context, req domain.DonationRequest) (*domain.Submission, error)
}

// WebhookService is the incoming port for provider callbacks.
type WebhookService interface {
	Process(ctx context.Context, event domain.WebhookEvent) (domain.Notification, error)
}
