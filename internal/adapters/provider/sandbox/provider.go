// Package sandbox is an in-memory PaymentProvider for local runs and end-to-end tests.
package sandbox

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
)

// Provider keeps customers and charges in memory. It is safe for concurrent use.
type Provider struct {
	mu        sync.Mutex
	customers map[string]string // tax id -> customer id
	charges   map[string]domain.ChargeResult
	calls     map[string]int
	failures  map[string]error
	now       func() time.Time
}

var _ ports.PaymentProvider = (*Provider)(nil)

func New() *Provider {
	return &Provider{
		customers: make(map[string]string),
		charges:   make(map[string]domain.ChargeResult),
		calls:     make(map[string]int),
		failures:  make(map[string]error),
		now:       time.Now,
	}
}

func (p *Provider) Name() string { return "sandbox" }

// FailOn makes every later call to op return err. A nil err clears it.
// op is one of find_customer, create_customer, tokenize_card, create_charge.
func (p *Provider) FailOn(op string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		delete(p.failures, op)
		return
	}
	p.failures[op] = err
}

// Calls reports how often op has been invoked.
func (p *Provider) Calls(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

// Charge returns a previously created charge.
func (p *Provider) Charge(id string) (domain.ChargeResult, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.charges[id]
	return c, ok
}

func (p *Provider) begin(op string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls[op]++
	return p.failures[op]
}

func (p *Provider) FindCustomerByTaxID(_ context.Context, taxID string) (*domain.CustomerRef, error) {
	if err := p.begin("find_customer"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if id, ok := p.customers[taxID]; ok {
		return &domain.CustomerRef{ID: id}, nil
	}
	return nil, nil
}

func (p *Provider) CreateCustomer(_ context.Context, customer domain.Customer, _ string) (*domain.CustomerRef, error) {
	if err := p.begin("create_customer"); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	id := "cus_" + shortID()
	p.customers[customer.TaxID] = id
	return &domain.CustomerRef{ID: id}, nil
}

func (p *Provider) TokenizeCard(_ context.Context, req ports.CardTokenRequest) (*ports.CardToken, error) {
	if err := p.begin("tokenize_card"); err != nil {
		return nil, err
	}
	if req.Card.Number == "" {
		return nil, &domain.ProviderError{Operation: "tokenize_card", HTTPStatus: 400, ProviderMessage: "card number is required"}
	}
	return &ports.CardToken{
		Token: "tok_" + shortID(),
		Brand: strings.ToUpper(req.Card.Brand),
		Last4: req.Card.Last4(),
	}, nil
}

func (p *Provider) CreateCharge(_ context.Context, req ports.ChargeRequest) (*domain.ChargeResult, error) {
	if err := p.begin("create_charge"); err != nil {
		return nil, err
	}
	if req.Instrument == domain.InstrumentCard && req.CardToken == "" {
		return nil, &domain.ProviderError{Operation: "create_charge", HTTPStatus: 400, ProviderMessage: "credit card token is required"}
	}

	id := "pay_" + shortID()
	result := domain.ChargeResult{
		ProviderID:        id,
		Status:            domain.StatusPending,
		Instrument:        req.Instrument,
		AmountMinorUnits:  req.AmountMinorUnits,
		ExternalReference: req.ExternalReference,
	}
	switch req.Instrument {
	case domain.InstrumentPix:
		expires := p.now().Add(24 * time.Hour)
		result.InstrumentPayload.PixPayload = pixPayload(id, req.AmountMinorUnits)
		result.InstrumentPayload.PixExpiresAt = &expires
	case domain.InstrumentBoleto:
		result.InstrumentPayload.BoletoURL = "https://sandbox.invalid/boleto/" + id
		result.InstrumentPayload.BoletoBarcode = boletoLine(req.AmountMinorUnits)
	case domain.InstrumentCard:
		result.Status = domain.StatusPaid
		result.InstrumentPayload.AuthorizationCode = strings.ToUpper(shortID()[:6])
	}

	p.mu.Lock()
	p.charges[id] = result
	p.mu.Unlock()
	return &result, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

// pixPayload mimics the shape of a BR Code; it is not a payable code.
func pixPayload(id string, amount int64) string {
	value := fmt.Sprintf("%d.%02d", amount/100, amount%100)
	return fmt.Sprintf("00020126360014br.gov.bcb.pix0114%s5204000053039865404%s5802BR5909SANDBOX6009SAO PAULO6304", id, value)
}

func boletoLine(amount int64) string {
	return fmt.Sprintf("00190000090000000000000000000000%015d", amount)
}
