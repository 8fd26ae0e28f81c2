package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
	"donation-gateway/internal/observability"
)

// service is the implementation of the DonationService port.
type service struct {
	builder  *IntentBuilder
	gateway  *Gateway
	recorder ports.ChargeRecorder
	logger   *slog.Logger
}

// NewDonationService is the constructor of the orchestrator. recorder may be nil.
func NewDonationService(builder *IntentBuilder, gateway *Gateway, recorder ports.ChargeRecorder, logger *slog.Logger) ports.DonationService {
	return &service{
		builder:  builder,
		gateway:  gateway,
		recorder: recorder,
		logger:   logger,
	}
}

// Submit runs VALIDATING -> CUSTOMER_RESOLVING -> CHARGE_SUBMITTING -> SUCCEEDED|FAILED.
// Nothing is sent to the provider unless validation passes, and nothing is retried.
func (s *service) Submit(ctx context.Context, req domain.DonationRequest) (sub *domain.Submission, err error) {
	sub = &domain.Submission{}
	logger := observability.LoggerFrom(ctx, s.logger)

	ctx, span := observability.Tracer().Start(ctx, "donation.submit")
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			sub.Enter(domain.StateFailed)
			err = &domain.InternalError{Op: "submit", Err: fmt.Errorf("panic: %v", r)}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, failureReason(err))
		}
		span.SetAttributes(attribute.String("donation.state", string(sub.State)))
		observability.RecordSubmission(string(sub.Instrument), string(sub.State), failureReason(err))
	}()

	sub.Enter(domain.StateValidating)
	intent, err := s.builder.Build(req)
	if err != nil {
		logger.Info("donation rejected by validation", "error", err)
		return s.fail(sub, err)
	}
	sub.Instrument = intent.Instrument
	sub.ExternalReference = intent.ExternalReference
	span.SetAttributes(
		attribute.String("donation.instrument", string(intent.Instrument)),
		attribute.String("donation.external_reference", intent.ExternalReference),
		attribute.Int64("donation.amount_minor_units", intent.AmountMinorUnits),
	)
	logger = logger.With("external_reference", intent.ExternalReference, "instrument", intent.Instrument)

	sub.Enter(domain.StateCustomerResolving)
	customer, err := s.gateway.FindOrCreateCustomer(ctx, intent.Customer, intent.ExternalReference)
	if err != nil {
		logger.Warn("customer resolution failed", "error", err)
		return s.fail(sub, err)
	}

	sub.Enter(domain.StateChargeSubmitting)
	charge, err := s.gateway.CreateCharge(ctx, intent, customer.ID)
	if err != nil {
		logger.Warn("charge submission failed", "error", err)
		return s.fail(sub, err)
	}

	sub.Charge = charge
	sub.Enter(domain.StateSucceeded)
	logger.Info("donation submitted",
		"provider_id", charge.ProviderID,
		"status", charge.Status,
		"amount_minor_units", charge.AmountMinorUnits,
		"customer_created", customer.Created,
	)

	if s.recorder != nil {
		if rerr := s.recorder.SaveCharge(ctx, intent, *charge); rerr != nil {
			// The donor was charged; a missing record is reconciled later from webhooks.
			logger.Error("failed to record charge", "provider_id", charge.ProviderID, "error", rerr)
		}
	}
	return sub, nil
}

func (s *service) fail(sub *domain.Submission, err error) (*domain.Submission, error) {
	sub.Enter(domain.StateFailed)
	return sub, err
}

// failureReason is a low-cardinality label for metrics and span status.
func failureReason(err error) string {
	if err == nil {
		return ""
	}
	var verrs domain.ValidationErrors
	var perr *domain.ProviderError
	switch {
	case errors.As(err, &verrs):
		return "validation"
	case errors.As(err, &perr):
		if perr.Retryable {
			return "provider_retryable"
		}
		return "provider"
	default:
		return "internal"
	}
}
