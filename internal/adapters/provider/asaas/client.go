package asaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
	"donation-gateway/internal/observability"
)

const (
	providerName   = "asaas"
	maxBodyBytes   = 1 << 20
	pixExpiryFmt   = "2006-01-02 15:04:05"
	placeholderCEP = "00000000"
)

// Client is the Asaas variant of the PaymentProvider port.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.PaymentProvider = (*Client)(nil)

// NewClient creates an Asaas client. Outbound calls are traced.
func NewClient(baseURL, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: observability.NewHTTPTransport(http.DefaultTransport),
		},
		logger: logger,
	}
}

func (c *Client) Name() string { return providerName }

// FindCustomerByTaxID assumes the search is exact-match and takes the first live record.
func (c *Client) FindCustomerByTaxID(ctx context.Context, taxID string) (*domain.CustomerRef, error) {
	var list customerListResponse
	q := url.Values{"cpfCnpj": {taxID}}
	if err := c.do(ctx, "find_customer", http.MethodGet, "/customers", q, nil, &list); err != nil {
		return nil, err
	}
	for _, cust := range list.Data {
		if cust.Deleted || cust.ID == "" {
			continue
		}
		return &domain.CustomerRef{ID: cust.ID}, nil
	}
	return nil, nil
}

func (c *Client) CreateCustomer(ctx context.Context, customer domain.Customer, externalReference string) (*domain.CustomerRef, error) {
	req := createCustomerRequest{
		Name:              customer.Name,
		CpfCnpj:           customer.TaxID,
		Email:             customer.Email,
		Phone:             customer.Phone,
		MobilePhone:       customer.Phone,
		ExternalReference: externalReference,
	}
	var resp customerResponse
	if err := c.do(ctx, "create_customer", http.MethodPost, "/customers", nil, req, &resp); err != nil {
		return nil, err
	}
	return &domain.CustomerRef{ID: resp.ID}, nil
}

func (c *Client) TokenizeCard(ctx context.Context, req ports.CardTokenRequest) (*ports.CardToken, error) {
	body := tokenizeRequest{
		Customer: req.CustomerRef,
		CreditCard: creditCard{
			HolderName:  req.Card.HolderName,
			Number:      req.Card.Number,
			ExpiryMonth: fmt.Sprintf("%02d", req.Card.ExpiryMonth),
			ExpiryYear:  strconv.Itoa(req.Card.ExpiryYear),
			CCV:         req.Card.SecurityCode,
		},
		CreditCardHolderInfo: creditCardHolderInfo{
			Name:          req.Card.HolderName,
			Email:         req.Customer.Email,
			CpfCnpj:       req.Card.HolderTaxID,
			PostalCode:    placeholderCEP,
			AddressNumber: "0",
			Phone:         req.Customer.Phone,
			MobilePhone:   req.Customer.Phone,
		},
		RemoteIP: req.RemoteIP,
	}
	var resp tokenizeResponse
	if err := c.do(ctx, "tokenize_card", http.MethodPost, "/creditCard/tokenize", nil, body, &resp); err != nil {
		return nil, err
	}
	return &ports.CardToken{Token: resp.CreditCardToken, Brand: resp.CreditCardBrand, Last4: resp.CreditCardNumber}, nil
}

func (c *Client) CreateCharge(ctx context.Context, req ports.ChargeRequest) (*domain.ChargeResult, error) {
	body := paymentRequest{
		Customer:          req.CustomerRef,
		BillingType:       billingType(req.Instrument),
		DueDate:           req.DueDate,
		Description:       req.Description,
		ExternalReference: req.ExternalReference,
		RemoteIP:          req.RemoteIP,
	}
	amount := json.Number(decimal.New(req.AmountMinorUnits, -2).StringFixed(2))
	if req.InstallmentCount > 1 {
		body.InstallmentCount = req.InstallmentCount
		body.TotalValue = amount
	} else {
		body.Value = amount
	}
	switch req.Instrument {
	case domain.InstrumentCard:
		body.CreditCardToken = req.CardToken
	case domain.InstrumentBoleto:
		postal := false
		body.PostalService = &postal
	}

	var payment paymentResponse
	if err := c.do(ctx, "create_charge", http.MethodPost, "/payments", nil, body, &payment); err != nil {
		return nil, err
	}

	result := &domain.ChargeResult{
		ProviderID:        payment.ID,
		Status:            mapStatus(payment.Status),
		Instrument:        req.Instrument,
		AmountMinorUnits:  toMinorUnits(payment.Value),
		ExternalReference: payment.ExternalReference,
	}
	// Installment charges report the first installment's value.
	if req.InstallmentCount > 1 || result.AmountMinorUnits == 0 {
		result.AmountMinorUnits = req.AmountMinorUnits
	}
	result.InstrumentPayload.InvoiceURL = payment.InvoiceURL

	switch req.Instrument {
	case domain.InstrumentPix:
		if err := c.attachPix(ctx, payment.ID, result); err != nil {
			c.logger.Error("pix charge created without qr code", "provider_id", payment.ID, "error", err)
			return nil, err
		}
	case domain.InstrumentBoleto:
		result.InstrumentPayload.BoletoURL = payment.BankSlipURL
		if err := c.attachBoleto(ctx, payment.ID, result); err != nil {
			// The slip URL is enough to pay; the typed line is a convenience.
			c.logger.Warn("boleto identification field unavailable", "provider_id", payment.ID, "error", err)
		}
	case domain.InstrumentCard:
		// Asaas exposes no acquirer code on the payment; the payment id is the confirmation shown to donors.
		result.InstrumentPayload.AuthorizationCode = payment.ID
		if payment.TransactionReceiptURL != "" {
			result.InstrumentPayload.InvoiceURL = payment.TransactionReceiptURL
		}
	}
	return result, nil
}

func (c *Client) attachPix(ctx context.Context, paymentID string, result *domain.ChargeResult) error {
	var qr pixQrCodeResponse
	if err := c.do(ctx, "fetch_pix_qrcode", http.MethodGet, "/payments/"+url.PathEscape(paymentID)+"/pixQrCode", nil, nil, &qr); err != nil {
		return err
	}
	result.InstrumentPayload.PixPayload = qr.Payload
	result.InstrumentPayload.PixQRCodeImage = qr.EncodedImage
	if t, err := time.Parse(pixExpiryFmt, qr.ExpirationDate); err == nil {
		result.InstrumentPayload.PixExpiresAt = &t
	}
	return nil
}

func (c *Client) attachBoleto(ctx context.Context, paymentID string, result *domain.ChargeResult) error {
	var field identificationFieldResponse
	if err := c.do(ctx, "fetch_boleto_line", http.MethodGet, "/payments/"+url.PathEscape(paymentID)+"/identificationField", nil, nil, &field); err != nil {
		return err
	}
	result.InstrumentPayload.BoletoBarcode = field.IdentificationField
	if result.InstrumentPayload.BoletoBarcode == "" {
		result.InstrumentPayload.BoletoBarcode = field.BarCode
	}
	return nil
}

// do performs one JSON call and translates every failure into a *domain.ProviderError.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any) error {
	start := time.Now()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("access_token", c.apiKey)
	req.Header.Set("User-Agent", "donation-gateway")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.ObserveProviderCall(providerName, op, "error", time.Since(start))
		return &domain.ProviderError{Operation: op, Retryable: isTimeout(err), Err: err}
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.logger.Warn("failed to close provider response body", "operation", op, "error", err)
		}
	}()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	observability.ObserveProviderCall(providerName, op, strconv.Itoa(resp.StatusCode), time.Since(start))
	if err != nil {
		return &domain.ProviderError{Operation: op, HTTPStatus: resp.StatusCode, Retryable: isTimeout(err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &domain.ProviderError{
			Operation:       op,
			HTTPStatus:      resp.StatusCode,
			ProviderMessage: errorMessage(resp.StatusCode, raw),
			Retryable:       resp.StatusCode >= 500,
		}
		c.logger.Warn("provider rejected request", "operation", op, "status", resp.StatusCode, "message", perr.ProviderMessage)
		return perr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.ProviderError{Operation: op, HTTPStatus: resp.StatusCode, ProviderMessage: "malformed provider response", Err: err}
	}
	return nil
}

func errorMessage(status int, raw []byte) string {
	var errResp errorResponse
	if err := json.Unmarshal(raw, &errResp); err == nil && len(errResp.Errors) > 0 && errResp.Errors[0].Description != "" {
		return errResp.Errors[0].Description
	}
	return http.StatusText(status)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func billingType(i domain.Instrument) string {
	switch i {
	case domain.InstrumentCard:
		return "CREDIT_CARD"
	case domain.InstrumentBoleto:
		return "BOLETO"
	default:
		return "PIX"
	}
}

// mapStatus translates Asaas payment statuses into ours.
func mapStatus(status string) domain.ChargeStatus {
	switch status {
	case "PENDING", "OVERDUE":
		return domain.StatusPending
	case "AUTHORIZED":
		return domain.StatusAuthorized
	case "CONFIRMED", "RECEIVED", "RECEIVED_IN_CASH":
		return domain.StatusPaid
	case "REFUNDED", "PARTIALLY_REFUNDED":
		return domain.StatusRefunded
	case "DECLINED", "REFUSED":
		return domain.StatusRefused
	default:
		// AWAITING_RISK_ANALYSIS, REFUND_REQUESTED, REFUND_IN_PROGRESS, CHARGEBACK_* and anything new.
		return domain.StatusProcessing
	}
}

// toMinorUnits returns 0 for values that do not fit, so the caller falls back to the requested amount.
func toMinorUnits(value float64) int64 {
	minor, err := domain.MinorUnits(decimal.NewFromFloat(value))
	if err != nil {
		return 0
	}
	return minor
}
