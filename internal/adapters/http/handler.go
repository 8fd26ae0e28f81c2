package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
	"donation-gateway/internal/observability"
)

const maxRequestBytes = 64 << 10

// DonationHandler exposes the submission surface.
type DonationHandler struct {
	service ports.DonationService
	logger  *slog.Logger
}

func NewDonationHandler(service ports.DonationService, logger *slog.Logger) *DonationHandler {
	return &DonationHandler{
		service: service,
		logger:  logger,
	}
}

// amountField accepts both "10.00" and 10.00 so decimal input is never routed through float64.
type amountField string

func (a *amountField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*a = amountField(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*a = amountField(n.String())
	return nil
}

type cardRequest struct {
	HolderName  string `json:"holder_name"`
	HolderTaxID string `json:"holder_tax_id"`
	Number      string `json:"number"`
	Expiry      string `json:"expiry"`
	CVV         string `json:"cvv"`
}

type createDonationRequest struct {
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	TaxID        string       `json:"tax_id"`
	Phone        string       `json:"phone"`
	Amount       amountField  `json:"amount"`
	Instrument   string       `json:"instrument"`
	Installments int          `json:"installments"`
	Card         *cardRequest `json:"card,omitempty"`
}

type chargeResponse struct {
	ProviderID       string `json:"provider_id"`
	Status           string `json:"status"`
	Instrument       string `json:"instrument"`
	AmountMinorUnits int64  `json:"amount_minor_units"`
}

type followUpResponse struct {
	PixPayload        string     `json:"pix_payload,omitempty"`
	PixQRCodeImage    string     `json:"pix_qr_code_image,omitempty"`
	PixExpiresAt      *time.Time `json:"pix_expires_at,omitempty"`
	BoletoURL         string     `json:"boleto_url,omitempty"`
	BoletoBarcode     string     `json:"boleto_barcode,omitempty"`
	AuthorizationCode string     `json:"authorization_code,omitempty"`
	InvoiceURL        string     `json:"invoice_url,omitempty"`
}

type donationResponse struct {
	State             string           `json:"state"`
	ExternalReference string           `json:"external_reference"`
	Charge            chargeResponse   `json:"charge"`
	FollowUp          followUpResponse `json:"follow_up"`
}

type fieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

type validationResponse struct {
	Error  string       `json:"error"`
	Fields []fieldError `json:"fields"`
}

type providerErrorResponse struct {
	Error             string `json:"error"`
	Retryable         bool   `json:"retryable"`
	ExternalReference string `json:"external_reference,omitempty"`
}

func (h *DonationHandler) HandleCreateDonation(w http.ResponseWriter, r *http.Request) {
	logger := observability.LoggerFrom(r.Context(), h.logger)

	var req createDonationRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest, logger)
		return
	}

	in := domain.DonationRequest{
		Name:         req.Name,
		Email:        req.Email,
		TaxID:        req.TaxID,
		Phone:        req.Phone,
		Amount:       string(req.Amount),
		Instrument:   req.Instrument,
		Installments: req.Installments,
		RemoteIP:     clientIP(r),
	}
	if req.Card != nil {
		in.CardHolderName = req.Card.HolderName
		in.CardHolderTaxID = req.Card.HolderTaxID
		in.CardNumber = req.Card.Number
		in.CardExpiry = req.Card.Expiry
		in.CardCVV = req.Card.CVV
	}

	sub, err := h.service.Submit(r.Context(), in)
	if err != nil {
		h.writeSubmitError(w, sub, err, logger)
		return
	}

	c := sub.Charge
	writeJSON(w, http.StatusCreated, donationResponse{
		State:             string(sub.State),
		ExternalReference: sub.ExternalReference,
		Charge: chargeResponse{
			ProviderID:       c.ProviderID,
			Status:           string(c.Status),
			Instrument:       string(c.Instrument),
			AmountMinorUnits: c.AmountMinorUnits,
		},
		FollowUp: followUpResponse{
			PixPayload:        c.InstrumentPayload.PixPayload,
			PixQRCodeImage:    c.InstrumentPayload.PixQRCodeImage,
			PixExpiresAt:      c.InstrumentPayload.PixExpiresAt,
			BoletoURL:         c.InstrumentPayload.BoletoURL,
			BoletoBarcode:     c.InstrumentPayload.BoletoBarcode,
			AuthorizationCode: c.InstrumentPayload.AuthorizationCode,
			InvoiceURL:        c.InstrumentPayload.InvoiceURL,
		},
	}, logger)
}

func (h *DonationHandler) writeSubmitError(w http.ResponseWriter, sub *domain.Submission, err error, logger *slog.Logger) {
	var verrs domain.ValidationErrors
	var perr *domain.ProviderError
	switch {
	case errors.As(err, &verrs):
		resp := validationResponse{Error: "validation failed", Fields: make([]fieldError, 0, len(verrs))}
		for _, v := range verrs {
			resp.Fields = append(resp.Fields, fieldError{Field: v.Field, Reason: v.Reason})
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp, logger)

	case errors.As(err, &perr):
		// Provider detail stays in the logs.
		logger.Warn("donation failed at provider", "operation", perr.Operation, "status", perr.HTTPStatus, "message", perr.ProviderMessage)
		resp := providerErrorResponse{Error: "the payment could not be processed", Retryable: perr.Retryable}
		if sub != nil {
			resp.ExternalReference = sub.ExternalReference
		}
		writeJSON(w, http.StatusBadGateway, resp, logger)

	default:
		logger.Error("unexpected error during donation submission", "error", err)
		writeJSONError(w, "internal server error", http.StatusInternalServerError, logger)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
