package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
)

// Gateway drives a PaymentProvider through the customer and charge steps.
// It keeps no state between calls.
type Gateway struct {
	provider ports.PaymentProvider
	logger   *slog.Logger
}

// NewGateway wraps a concrete provider variant.
func NewGateway(provider ports.PaymentProvider, logger *slog.Logger) *Gateway {
	return &Gateway{provider: provider, logger: logger}
}

// FindOrCreateCustomer looks the donor up by tax id and creates it only on a miss.
func (g *Gateway) FindOrCreateCustomer(ctx context.Context, customer domain.Customer, externalReference string) (*domain.CustomerRef, error) {
	ref, err := g.provider.FindCustomerByTaxID(ctx, customer.TaxID)
	if err != nil {
		return nil, asProviderError("find_customer", err)
	}
	if ref != nil && ref.ID != "" {
		g.logger.Debug("customer found", "provider", g.provider.Name(), "customer_ref", ref.ID)
		return ref, nil
	}

	ref, err = g.provider.CreateCustomer(ctx, customer, "CUSTOMER-"+externalReference)
	if err != nil {
		return nil, asProviderError("create_customer", err)
	}
	if ref == nil || ref.ID == "" {
		return nil, &domain.ProviderError{Operation: "create_customer", ProviderMessage: "provider returned no customer id"}
	}
	ref.Created = true
	g.logger.Info("customer created", "provider", g.provider.Name(), "customer_ref", ref.ID)
	return ref, nil
}

// CreateCharge submits the charge. Cards are tokenized first and only the token is sent with the charge.
func (g *Gateway) CreateCharge(ctx context.Context, intent domain.PaymentIntent, customerRef string) (*domain.ChargeResult, error) {
	req := ports.ChargeRequest{
		CustomerRef:       customerRef,
		Instrument:        intent.Instrument,
		AmountMinorUnits:  intent.AmountMinorUnits,
		DueDate:           intent.DueDate.Format("2006-01-02"),
		Description:       intent.Description,
		ExternalReference: intent.ExternalReference,
		InstallmentCount:  intent.InstallmentCount,
		RemoteIP:          intent.RemoteIP,
		Metadata:          intent.Metadata,
	}

	if intent.Instrument == domain.InstrumentCard {
		if intent.Card == nil {
			return nil, &domain.InternalError{Op: "create_charge", Err: errors.New("card intent without card details")}
		}
		token, err := g.provider.TokenizeCard(ctx, ports.CardTokenRequest{
			CustomerRef: customerRef,
			Customer:    intent.Customer,
			Card:        *intent.Card,
			RemoteIP:    intent.RemoteIP,
		})
		if err != nil {
			return nil, asProviderError("tokenize_card", err)
		}
		if token == nil || token.Token == "" {
			return nil, &domain.ProviderError{Operation: "tokenize_card", ProviderMessage: "provider returned no card token"}
		}
		g.logger.Debug("card tokenized", "brand", token.Brand, "last4", intent.Card.Last4())
		req.CardToken = token.Token
	}

	result, err := g.provider.CreateCharge(ctx, req)
	if err != nil {
		return nil, asProviderError("create_charge", err)
	}
	if result == nil || result.ProviderID == "" {
		return nil, &domain.ProviderError{Operation: "create_charge", ProviderMessage: "provider returned no charge id"}
	}

	if result.Instrument == "" {
		result.Instrument = intent.Instrument
	}
	if result.AmountMinorUnits == 0 {
		result.AmountMinorUnits = intent.AmountMinorUnits
	}
	if result.ExternalReference == "" {
		result.ExternalReference = intent.ExternalReference
	}
	return result, nil
}

// asProviderError keeps provider errors as they are and wraps anything else; only timeouts are retryable.
func asProviderError(op string, err error) error {
	var perr *domain.ProviderError
	if errors.As(err, &perr) {
		if perr.Operation == "" {
			perr.Operation = op
		}
		return perr
	}
	return &domain.ProviderError{
		Operation: op,
		Retryable: errors.Is(err, context.DeadlineExceeded),
		Err:       fmt.Errorf("%s: %w", op, err),
	}
}
