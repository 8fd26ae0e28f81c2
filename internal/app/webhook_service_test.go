package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"donation-gateway/internal/core/domain"
)

// Mock - implementation of the notification sink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Publish(ctx context.Context, n domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func TestWebhookService_PublishesAndRecords(t *testing.T) {
	// --- Arrange ---
	sink := new(MockSink)
	recorder := new(MockRecorder)
	sink.On("Publish", mock.Anything, mock.MatchedBy(func(n domain.Notification) bool {
		return n.Kind == domain.NotifyDonationConfirmed && n.ProviderTransactionID == "tx_1"
	})).Return(nil).Once()
	recorder.On("UpdateStatus", mock.Anything, "tx_1", domain.StatusPaid).Return(nil).Once()
	svc := NewWebhookService(NewReconciler(testLogger()), sink, recorder, testLogger())

	// --- Act ---
	n, err := svc.Process(t.Context(), statusEvent("tx_1", "paid"))

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, domain.NotifyDonationConfirmed, n.Kind)
	sink.AssertExpectations(t)
	recorder.AssertExpectations(t)
}

func TestWebhookService_NoNotificationSkipsSink(t *testing.T) {
	sink := new(MockSink)
	svc := NewWebhookService(NewReconciler(testLogger()), sink, nil, testLogger())

	n, err := svc.Process(t.Context(), statusEvent("tx_1", "waiting_payment"))

	require.NoError(t, err)
	assert.True(t, n.Empty())
	sink.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestWebhookService_SinkFailure(t *testing.T) {
	sink := new(MockSink)
	sink.On("Publish", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	svc := NewWebhookService(NewReconciler(testLogger()), sink, nil, testLogger())

	_, err := svc.Process(t.Context(), statusEvent("tx_1", "refunded"))

	assert.ErrorIs(t, err, domain.ErrSinkUnavailable)
}

func TestWebhookService_StoreFailure(t *testing.T) {
	sink := new(MockSink)
	recorder := new(MockRecorder)
	recorder.On("UpdateStatus", mock.Anything, "tx_1", domain.StatusRefunded).Return(errors.New("timeout"))
	svc := NewWebhookService(NewReconciler(testLogger()), sink, recorder, testLogger())

	_, err := svc.Process(t.Context(), statusEvent("tx_1", "refunded"))

	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	sink.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestWebhookService_MalformedEvent(t *testing.T) {
	sink := new(MockSink)
	svc := NewWebhookService(NewReconciler(testLogger()), sink, nil, testLogger())

	_, err := svc.Process(t.Context(), domain.WebhookEvent{EventType: domain.EventTransactionStatusChanged})

	assert.ErrorIs(t, err, domain.ErrMalformedWebhook)
}
