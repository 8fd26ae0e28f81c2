package sandbox

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
)

func TestCustomerLookupAfterCreate(t *testing.T) {
	p := New()
	ctx := t.Context()

	ref, err := p.FindCustomerByTaxID(ctx, "52998224725")
	require.NoError(t, err)
	assert.Nil(t, ref)

	created, err := p.CreateCustomer(ctx, domain.Customer{TaxID: "52998224725"}, "CUSTOMER-1")
	require.NoError(t, err)

	found, err := p.FindCustomerByTaxID(ctx, "52998224725")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, 2, p.Calls("find_customer"))
	assert.Equal(t, 1, p.Calls("create_customer"))
}

func TestCreateCharge(t *testing.T) {
	p := New()
	ctx := t.Context()

	pix, err := p.CreateCharge(ctx, ports.ChargeRequest{Instrument: domain.InstrumentPix, AmountMinorUnits: 1000})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, pix.Status)
	assert.Contains(t, pix.InstrumentPayload.PixPayload, "10.00")

	boleto, err := p.CreateCharge(ctx, ports.ChargeRequest{Instrument: domain.InstrumentBoleto, AmountMinorUnits: 5000})
	require.NoError(t, err)
	assert.NotEmpty(t, boleto.InstrumentPayload.BoletoURL)
	assert.NotEmpty(t, boleto.InstrumentPayload.BoletoBarcode)

	_, err = p.CreateCharge(ctx, ports.ChargeRequest{Instrument: domain.InstrumentCard, AmountMinorUnits: 5000})
	var perr *domain.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, 400, perr.HTTPStatus)

	card, err := p.CreateCharge(ctx, ports.ChargeRequest{Instrument: domain.InstrumentCard, AmountMinorUnits: 5000, CardToken: "tok"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, card.Status)
	assert.NotEmpty(t, card.InstrumentPayload.AuthorizationCode)

	stored, ok := p.Charge(card.ProviderID)
	assert.True(t, ok)
	assert.Equal(t, *card, stored)
}

func TestFailOn(t *testing.T) {
	p := New()
	boom := &domain.ProviderError{Operation: "create_charge", HTTPStatus: 503, Retryable: true}
	p.FailOn("create_charge", boom)

	_, err := p.CreateCharge(t.Context(), ports.ChargeRequest{Instrument: domain.InstrumentPix})
	assert.True(t, errors.Is(err, boom))

	p.FailOn("create_charge", nil)
	_, err = p.CreateCharge(t.Context(), ports.ChargeRequest{Instrument: domain.InstrumentPix})
	assert.NoError(t, err)
}
