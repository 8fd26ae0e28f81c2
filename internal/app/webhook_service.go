package app

import (
	"context"
	"fmt"
	"log/slog"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
	"donation-gateway/internal/observability"
)

type webhookService struct {
	reconciler *Reconciler
	sink       ports.NotificationSink
	recorder   ports.ChargeRecorder
	logger     *slog.Logger
}

// NewWebhookService wires the reconciler to its sink. recorder may be nil.
func NewWebhookService(reconciler *Reconciler, sink ports.NotificationSink, recorder ports.ChargeRecorder, logger *slog.Logger) ports.WebhookService {
	return &webhookService{
		reconciler: reconciler,
		sink:       sink,
		recorder:   recorder,
		logger:     logger,
	}
}

// Process reconciles one event, records the new status and hands the notification to the sink.
// Any failure is returned so the provider re-delivers the event.
func (s *webhookService) Process(ctx context.Context, event domain.WebhookEvent) (n domain.Notification, err error) {
	defer func() {
		if r := recover(); r != nil {
			n, err = domain.Notification{}, &domain.InternalError{Op: "process_webhook", Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	n, err = s.reconciler.Handle(ctx, event)
	if err != nil {
		return domain.Notification{}, err
	}

	if s.recorder != nil && event.EventType == domain.EventTransactionStatusChanged {
		if status, ok := ParseWebhookStatus(event.Status); ok {
			if err := s.recorder.UpdateStatus(ctx, event.ProviderTransactionID, status); err != nil {
				return domain.Notification{}, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
			}
		}
	}

	if n.Empty() {
		return n, nil
	}
	if err := s.sink.Publish(ctx, n); err != nil {
		observability.LoggerFrom(ctx, s.logger).Error("failed to publish notification",
			"kind", n.Kind, "provider_transaction_id", n.ProviderTransactionID, "error", err)
		return domain.Notification{}, fmt.Errorf("%w: %v", domain.ErrSinkUnavailable, err)
	}
	return n, nil
}
