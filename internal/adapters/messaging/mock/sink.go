package mock

import (
	"context"
	"log/slog"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
)

// Sink is a NotificationSink stub for local development. It only logs.
type Sink struct {
	logger *slog.Logger
}

var _ ports.NotificationSink = (*Sink)(nil)

func NewSink(logger *slog.Logger) *Sink {
	return &Sink{logger: logger}
}

func (s *Sink) Publish(ctx context.Context, n domain.Notification) error {
	s.logger.InfoContext(ctx, "📨 [MOCK] notification",
		"kind", n.Kind,
		"audience", n.Audience,
		"provider_transaction_id", n.ProviderTransactionID,
		"recipient", n.RecipientEmail,
		"idempotency_key", n.IdempotencyKey,
	)
	return nil
}
