package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"donation-gateway/internal/config"
	"donation-gateway/internal/core/domain"
)

// ReferenceFunc produces the externalReference of one attempt.
type ReferenceFunc func(now time.Time) string

// NewExternalReference returns DONATION-<unix millis>-<8 random hex chars>.
func NewExternalReference(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("DONATION-%d-%s", now.UnixMilli(), strings.ToUpper(id.String()[:8]))
}

// IntentBuilder turns a raw donation request into a PaymentIntent.
type IntentBuilder struct {
	cfg       config.DonationConfig
	loc       *time.Location
	now       func() time.Time
	reference ReferenceFunc
}

// NewIntentBuilder creates a builder using the wall clock and random references.
func NewIntentBuilder(cfg config.DonationConfig) *IntentBuilder {
	return &IntentBuilder{
		cfg:       cfg,
		loc:       cfg.Location(),
		now:       time.Now,
		reference: NewExternalReference,
	}
}

// WithClock replaces the clock, mostly for tests.
func (b *IntentBuilder) WithClock(now func() time.Time) *IntentBuilder {
	b.now = now
	return b
}

// WithReferences replaces the externalReference generator.
func (b *IntentBuilder) WithReferences(ref ReferenceFunc) *IntentBuilder {
	b.reference = ref
	return b
}

// ParseAmount converts "10.00", "10,5" or "1.234,56" into minor units, rounding half up.
func ParseAmount(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("amount is empty")
	}
	// pt-BR input uses ',' as the decimal separator and '.' for thousands.
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.ReplaceAll(s, ",", ".")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("amount %q is not a number", raw)
	}
	// Round rounds half away from zero, which is half-up for the positive amounts accepted here.
	minor, err := domain.MinorUnits(d)
	if err != nil {
		return 0, fmt.Errorf("amount %q is too large", raw)
	}
	return minor, nil
}

// FormatMinorUnits renders minor units as a two-decimal string, e.g. 1000 -> "10.00".
func FormatMinorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}

// Build validates every field required by the selected instrument and assembles the intent.
// All failures are reported together as domain.ValidationErrors.
func (b *IntentBuilder) Build(req domain.DonationRequest) (domain.PaymentIntent, error) {
	var errs domain.ValidationErrors
	now := b.now().In(b.loc)

	customer := domain.Customer{
		Name:  strings.TrimSpace(req.Name),
		Email: strings.TrimSpace(req.Email),
		TaxID: NormalizeDocument(req.TaxID),
		Phone: NormalizePhone(req.Phone),
	}
	if customer.Name == "" {
		errs.Add("name", "required")
	}
	if !ValidateEmail(customer.Email) {
		errs.Add("email", "invalid e-mail address")
	}
	if !ValidateDocument(customer.TaxID) {
		errs.Add("tax_id", "invalid CPF")
	}
	if !ValidatePhone(customer.Phone) {
		errs.Add("phone", "expected area code and number")
	}

	amount, err := ParseAmount(req.Amount)
	switch {
	case err != nil:
		errs.Add("amount", err.Error())
	case amount <= 0:
		errs.Add("amount", "must be positive")
	case amount < b.cfg.MinAmount:
		errs.Add("amount", fmt.Sprintf("minimum donation is %s", FormatMinorUnits(b.cfg.MinAmount)))
	case b.cfg.MaxAmount > 0 && amount > b.cfg.MaxAmount:
		errs.Add("amount", fmt.Sprintf("maximum donation is %s", FormatMinorUnits(b.cfg.MaxAmount)))
	}

	instrument, ok := domain.ParseInstrument(req.Instrument)
	if !ok {
		errs.Add("instrument", "must be one of CARD, PIX, BOLETO")
	}

	intent := domain.PaymentIntent{
		Customer:         customer,
		Instrument:       instrument,
		AmountMinorUnits: amount,
		InstallmentCount: 1,
		RemoteIP:         strings.TrimSpace(req.RemoteIP),
	}

	if instrument == domain.InstrumentCard {
		intent.Card, intent.InstallmentCount = b.buildCard(req, customer, amount, now, &errs)
	}

	if len(errs) > 0 {
		return domain.PaymentIntent{}, errs
	}

	offset := b.cfg.DueDateOffsetDays
	if instrument == domain.InstrumentBoleto {
		offset = b.cfg.BoletoDueDateOffsetDays
	}
	y, m, d := now.Date()
	intent.DueDate = time.Date(y, m, d, 0, 0, 0, 0, b.loc).AddDate(0, 0, offset)
	intent.Description = fmt.Sprintf("%s - %s", b.cfg.DescriptionPrefix, customer.Name)
	intent.ExternalReference = b.reference(now)
	intent.Metadata = map[string]string{
		"platform":         b.cfg.Platform,
		"transaction_type": "donation",
		"source":           "website",
	}
	return intent, nil
}

func (b *IntentBuilder) buildCard(req domain.DonationRequest, customer domain.Customer, amount int64, now time.Time, errs *domain.ValidationErrors) (*domain.CardDetails, int) {
	card := &domain.CardDetails{
		HolderName:   strings.TrimSpace(req.CardHolderName),
		HolderTaxID:  NormalizeDocument(req.CardHolderTaxID),
		Number:       NormalizeCardNumber(req.CardNumber),
		SecurityCode: strings.TrimSpace(req.CardCVV),
	}
	if card.HolderTaxID == "" {
		card.HolderTaxID = customer.TaxID
	}
	card.Brand = DetectCardBrand(card.Number)

	if card.HolderName == "" {
		errs.Add("card_holder_name", "required")
	}
	if !ValidateCardNumber(card.Number) {
		errs.Add("card_number", "must have 13 to 19 digits")
	}
	if !ValidateSecurityCode(card.SecurityCode) {
		errs.Add("card_cvv", "must have 3 or 4 digits")
	}
	if req.CardHolderTaxID != "" && !ValidateDocument(card.HolderTaxID) {
		errs.Add("card_holder_tax_id", "invalid CPF")
	}

	month, year, err := ParseExpiry(req.CardExpiry)
	if err != nil {
		errs.Add("card_expiry", "expected MM/YY")
	} else if !ValidateExpiry(month, year, now) {
		errs.Add("card_expiry", "card is expired")
	}
	card.ExpiryMonth, card.ExpiryYear = month, year

	installments := req.Installments
	if installments == 0 {
		installments = 1
	}
	switch {
	case installments < 1 || installments > b.cfg.MaxInstallments:
		errs.Add("installments", fmt.Sprintf("must be between 1 and %d", b.cfg.MaxInstallments))
	case installments > 1 && amount/int64(installments) < b.cfg.MinInstallmentAmount:
		errs.Add("installments", fmt.Sprintf("each installment must be at least %s", FormatMinorUnits(b.cfg.MinInstallmentAmount)))
	}
	return card, installments
}
