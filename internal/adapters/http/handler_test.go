package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"donation-gateway/internal/core/domain"
)

type MockDonationService struct {
	mock.Mock
}

func (m *MockDonationService) Submit(ctx context.Context, req domain.DonationRequest) (*domain.Submission, error) {
	args := m.Called(ctx, req)
	sub, _ := args.Get(0).(*domain.Submission)
	return sub, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func postDonation(t *testing.T, h *DonationHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/donations", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.7:51234"
	rr := httptest.NewRecorder()
	h.HandleCreateDonation(rr, req)
	return rr
}

func TestHandleCreateDonation_Success(t *testing.T) {
	// Arrange
	svc := new(MockDonationService)
	charge := &domain.ChargeResult{
		ProviderID:       "pay_1",
		Status:           domain.StatusPending,
		Instrument:       domain.InstrumentPix,
		AmountMinorUnits: 1000,
		InstrumentPayload: domain.InstrumentPayload{
			PixPayload: "000201",
		},
	}
	sub := &domain.Submission{State: domain.StateSucceeded, ExternalReference: "DONATION-1-ABCDEF12", Instrument: domain.InstrumentPix, Charge: charge}
	svc.On("Submit", mock.Anything, mock.MatchedBy(func(r domain.DonationRequest) bool {
		return r.Amount == "10.00" && r.TaxID == "529.982.247-25" && r.Instrument == "PIX" && r.RemoteIP == "203.0.113.7"
	})).Return(sub, nil).Once()
	h := NewDonationHandler(svc, discardLogger())

	// Act
	rr := postDonation(t, h, `{"name":"Maria","email":"maria@example.com","tax_id":"529.982.247-25","phone":"11987654321","amount":"10.00","instrument":"PIX"}`)

	// Assert
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp donationResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "SUCCEEDED", resp.State)
	assert.Equal(t, "pay_1", resp.Charge.ProviderID)
	assert.Equal(t, int64(1000), resp.Charge.AmountMinorUnits)
	assert.Equal(t, "000201", resp.FollowUp.PixPayload)
	svc.AssertExpectations(t)
}

func TestHandleCreateDonation_NumericAmountAndCard(t *testing.T) {
	svc := new(MockDonationService)
	svc.On("Submit", mock.Anything, mock.MatchedBy(func(r domain.DonationRequest) bool {
		return r.Amount == "25.5" && r.CardNumber == "4111 1111 1111 1111" && r.CardExpiry == "12/30" && r.Installments == 2
	})).Return(&domain.Submission{State: domain.StateSucceeded, Charge: &domain.ChargeResult{ProviderID: "pay_2"}}, nil).Once()
	h := NewDonationHandler(svc, discardLogger())

	rr := postDonation(t, h, `{"amount":25.5,"instrument":"CARD","installments":2,"card":{"holder_name":"M","number":"4111 1111 1111 1111","expiry":"12/30","cvv":"123"}}`)

	assert.Equal(t, http.StatusCreated, rr.Code)
	svc.AssertExpectations(t)
}

func TestHandleCreateDonation_Errors(t *testing.T) {
	testCases := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "validation errors list every field",
			err:        domain.ValidationErrors{{Field: "tax_id", Reason: "invalid CPF"}, {Field: "amount", Reason: "must be positive"}},
			wantStatus: http.StatusUnprocessableEntity,
			wantBody:   `"field":"tax_id"`,
		},
		{
			name:       "provider failure is a generic 502",
			err:        &domain.ProviderError{Operation: "create_charge", HTTPStatus: 503, ProviderMessage: "secret detail", Retryable: true},
			wantStatus: http.StatusBadGateway,
			wantBody:   `"retryable":true`,
		},
		{
			name:       "internal error does not leak details",
			err:        &domain.InternalError{Op: "submit", Err: errors.New("nil map")},
			wantStatus: http.StatusInternalServerError,
			wantBody:   `"internal server error"`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockDonationService)
			svc.On("Submit", mock.Anything, mock.Anything).Return(&domain.Submission{State: domain.StateFailed}, tc.err)
			h := NewDonationHandler(svc, discardLogger())

			rr := postDonation(t, h, `{"amount":"10"}`)

			assert.Equal(t, tc.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tc.wantBody)
			assert.NotContains(t, rr.Body.String(), "secret detail")
			assert.NotContains(t, rr.Body.String(), "nil map")
		})
	}
}

func TestHandleCreateDonation_BadJSON(t *testing.T) {
	svc := new(MockDonationService)
	h := NewDonationHandler(svc, discardLogger())

	rr := postDonation(t, h, `{"amount":`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}
