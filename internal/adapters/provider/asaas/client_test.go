package asaas

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "test-key", 2*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFindCustomerByTaxID(t *testing.T) {
	t.Run("returns the first live customer", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/customers", r.URL.Path)
			assert.Equal(t, "52998224725", r.URL.Query().Get("cpfCnpj"))
			assert.Equal(t, "test-key", r.Header.Get("access_token"))
			_, _ = w.Write([]byte(`{"data":[{"id":"cus_old","deleted":true},{"id":"cus_123","cpfCnpj":"52998224725"}],"totalCount":2}`))
		})

		ref, err := client.FindCustomerByTaxID(t.Context(), "52998224725")

		require.NoError(t, err)
		require.NotNil(t, ref)
		assert.Equal(t, "cus_123", ref.ID)
		assert.False(t, ref.Created)
	})

	t.Run("returns nil when nobody matches", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[],"totalCount":0}`))
		})

		ref, err := client.FindCustomerByTaxID(t.Context(), "52998224725")

		require.NoError(t, err)
		assert.Nil(t, ref)
	})
}

func TestCreateCustomer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/customers", r.URL.Path)
		var body createCustomerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Maria Silva", body.Name)
		assert.Equal(t, "52998224725", body.CpfCnpj)
		assert.Equal(t, "CUSTOMER-DONATION-1", body.ExternalReference)
		_, _ = w.Write([]byte(`{"id":"cus_new"}`))
	})

	ref, err := client.CreateCustomer(t.Context(), domain.Customer{
		Name:  "Maria Silva",
		Email: "maria@example.com",
		TaxID: "52998224725",
		Phone: "11987654321",
	}, "CUSTOMER-DONATION-1")

	require.NoError(t, err)
	assert.Equal(t, "cus_new", ref.ID)
}

func TestTokenizeCard(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/creditCard/tokenize", r.URL.Path)
		var body tokenizeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "cus_1", body.Customer)
		assert.Equal(t, "4111111111111111", body.CreditCard.Number)
		assert.Equal(t, "03", body.CreditCard.ExpiryMonth)
		assert.Equal(t, "2030", body.CreditCard.ExpiryYear)
		_, _ = w.Write([]byte(`{"creditCardNumber":"1111","creditCardBrand":"VISA","creditCardToken":"tok_abc"}`))
	})

	token, err := client.TokenizeCard(t.Context(), ports.CardTokenRequest{
		CustomerRef: "cus_1",
		Customer:    domain.Customer{Email: "maria@example.com"},
		Card: domain.CardDetails{
			HolderName:   "MARIA SILVA",
			HolderTaxID:  "52998224725",
			Number:       "4111111111111111",
			ExpiryMonth:  3,
			ExpiryYear:   2030,
			SecurityCode: "123",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "tok_abc", token.Token)
	assert.Equal(t, "VISA", token.Brand)
	assert.Equal(t, "1111", token.Last4)
}

func TestCreateCharge_Pix(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "PIX", body["billingType"])
			assert.EqualValues(t, 10, body["value"])
			assert.NotContains(t, body, "creditCard")
			_, _ = w.Write([]byte(`{"id":"pay_1","status":"PENDING","billingType":"PIX","value":10.0,"externalReference":"DONATION-1-ABCDEF12"}`))
		case "/payments/pay_1/pixQrCode":
			_, _ = w.Write([]byte(`{"encodedImage":"aW1n","payload":"00020126580014br.gov.bcb.pix","expirationDate":"2030-01-02 23:59:59"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	result, err := client.CreateCharge(t.Context(), ports.ChargeRequest{
		CustomerRef:       "cus_1",
		Instrument:        domain.InstrumentPix,
		AmountMinorUnits:  1000,
		DueDate:           "2030-01-02",
		Description:       "Doação - Maria",
		ExternalReference: "DONATION-1-ABCDEF12",
		InstallmentCount:  1,
	})

	require.NoError(t, err)
	assert.Equal(t, "pay_1", result.ProviderID)
	assert.Equal(t, domain.StatusPending, result.Status)
	assert.Equal(t, int64(1000), result.AmountMinorUnits)
	assert.Equal(t, "00020126580014br.gov.bcb.pix", result.InstrumentPayload.PixPayload)
	assert.Equal(t, "aW1n", result.InstrumentPayload.PixQRCodeImage)
	require.NotNil(t, result.InstrumentPayload.PixExpiresAt)
}

func TestCreateCharge_CardSendsTokenOnly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CREDIT_CARD", body["billingType"])
		assert.Equal(t, "tok_abc", body["creditCardToken"])
		assert.EqualValues(t, 3, body["installmentCount"])
		assert.EqualValues(t, 30, body["totalValue"])
		assert.NotContains(t, body, "value")
		assert.NotContains(t, body, "creditCard")
		_, _ = w.Write([]byte(`{"id":"pay_card","status":"CONFIRMED","value":10.0,"externalReference":"DONATION-2-ABCDEF12"}`))
	})

	result, err := client.CreateCharge(t.Context(), ports.ChargeRequest{
		CustomerRef:       "cus_1",
		Instrument:        domain.InstrumentCard,
		AmountMinorUnits:  3000,
		DueDate:           "2030-01-02",
		ExternalReference: "DONATION-2-ABCDEF12",
		InstallmentCount:  3,
		CardToken:         "tok_abc",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, result.Status)
	assert.Equal(t, int64(3000), result.AmountMinorUnits)
	assert.Equal(t, "pay_card", result.InstrumentPayload.AuthorizationCode)
}

func TestCreateCharge_BoletoToleratesMissingLine(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments":
			_, _ = w.Write([]byte(`{"id":"pay_b","status":"PENDING","value":50.0,"bankSlipUrl":"https://example.com/b/pay_b"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	result, err := client.CreateCharge(t.Context(), ports.ChargeRequest{
		CustomerRef:      "cus_1",
		Instrument:       domain.InstrumentBoleto,
		AmountMinorUnits: 5000,
		DueDate:          "2030-01-04",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b/pay_b", result.InstrumentPayload.BoletoURL)
	assert.Empty(t, result.InstrumentPayload.BoletoBarcode)
}

func TestProviderErrors(t *testing.T) {
	testCases := []struct {
		name          string
		status        int
		body          string
		wantMessage   string
		wantRetryable bool
	}{
		{
			name:          "client error carries provider description",
			status:        http.StatusBadRequest,
			body:          `{"errors":[{"code":"invalid_cpfCnpj","description":"O CPF informado é inválido."}]}`,
			wantMessage:   "O CPF informado é inválido.",
			wantRetryable: false,
		},
		{
			name:          "server error is retryable",
			status:        http.StatusBadGateway,
			body:          `upstream down`,
			wantMessage:   "Bad Gateway",
			wantRetryable: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			_, err := client.CreateCustomer(t.Context(), domain.Customer{Name: "x"}, "ref")

			var perr *domain.ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tc.status, perr.HTTPStatus)
			assert.Equal(t, tc.wantMessage, perr.ProviderMessage)
			assert.Equal(t, tc.wantRetryable, perr.Retryable)
		})
	}
}

func TestProviderTimeoutIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.URL, "k", 20*time.Millisecond, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := client.FindCustomerByTaxID(t.Context(), "52998224725")

	var perr *domain.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.True(t, perr.Retryable)
	assert.Zero(t, perr.HTTPStatus)
}

func TestMapStatus(t *testing.T) {
	assert.Equal(t, domain.StatusPaid, mapStatus("RECEIVED"))
	assert.Equal(t, domain.StatusPaid, mapStatus("CONFIRMED"))
	assert.Equal(t, domain.StatusPending, mapStatus("OVERDUE"))
	assert.Equal(t, domain.StatusRefunded, mapStatus("REFUNDED"))
	assert.Equal(t, domain.StatusProcessing, mapStatus("AWAITING_RISK_ANALYSIS"))
	assert.Equal(t, domain.StatusProcessing, mapStatus("SOMETHING_NEW"))
}
