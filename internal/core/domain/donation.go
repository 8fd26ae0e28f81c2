package domain

import (
	"strings"
	"time"
)

// Instrument is the payment method chosen by the donor.
type Instrument string

const (
	InstrumentCard   Instrument = "CARD"
	InstrumentPix    Instrument = "PIX"
	InstrumentBoleto Instrument = "BOLETO"
)

// ParseInstrument accepts the canonical names and the aliases used by the donation form.
func ParseInstrument(raw string) (Instrument, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "card", "credit_card", "creditcard", "credit-card":
		return InstrumentCard, true
	case "pix":
		return InstrumentPix, true
	case "boleto", "bank_slip":
		return InstrumentBoleto, true
	}
	return "", false
}

// ChargeStatus is our own status set; provider-native statuses are translated at the adapter boundary.
type ChargeStatus string

const (
	StatusPending    ChargeStatus = "PENDING"
	StatusAuthorized ChargeStatus = "AUTHORIZED"
	StatusPaid       ChargeStatus = "PAID"
	StatusRefused    ChargeStatus = "REFUSED"
	StatusRefunded   ChargeStatus = "REFUNDED"
	StatusProcessing ChargeStatus = "PROCESSING"
)

// DonationRequest is the raw, immutable per-submission input as typed by the donor.
type DonationRequest struct {
	Name       string
	Email      string
	TaxID      string
	Phone      string
	Amount     string
	Instrument string

	CardHolderName  string
	CardNumber      string
	CardExpiry      string
	CardCVV         string
	CardHolderTaxID string
	Installments    int

	RemoteIP string
}

// Customer is the donor as known by the provider. TaxID is the identity key.
type Customer struct {
	Name  string
	Email string
	TaxID string
	Phone string
}

// CustomerRef is the provider's identifier of a customer.
type CustomerRef struct {
	ID      string
	Created bool
}

// CardDetails never leaves the process except towards the provider's tokenization endpoint.
type CardDetails struct {
	HolderName   string
	HolderTaxID  string
	Number       string
	ExpiryMonth  int
	ExpiryYear   int
	SecurityCode string
	Brand        string
}

// Last4 returns the last four digits for logging.
func (c CardDetails) Last4() string {
	if len(c.Number) < 4 {
		return ""
	}
	return c.Number[len(c.Number)-4:]
}

// PaymentIntent is a validated, normalized charge request for one submission.
type PaymentIntent struct {
	Customer          Customer
	Instrument        Instrument
	AmountMinorUnits  int64
	DueDate           time.Time
	Description       string
	ExternalReference string
	InstallmentCount  int
	Card              *CardDetails
	RemoteIP          string
	Metadata          map[string]string
}

// ChargeResult is the provider-independent outcome of a charge creation.
type ChargeResult struct {
	ProviderID        string
	Status            ChargeStatus
	Instrument        Instrument
	AmountMinorUnits  int64
	ExternalReference string
	InstrumentPayload InstrumentPayload
}

// InstrumentPayload carries the instrument-specific follow-up data.
type InstrumentPayload struct {
	PixPayload        string
	PixQRCodeImage    string
	PixExpiresAt      *time.Time
	BoletoURL         string
	BoletoBarcode     string
	AuthorizationCode string
	InvoiceURL        string
}

// Empty reports whether the provider returned no follow-up data at all.
func (p InstrumentPayload) Empty() bool {
	return p.PixPayload == "" && p.BoletoURL == "" && p.BoletoBarcode == "" && p.AuthorizationCode == ""
}
