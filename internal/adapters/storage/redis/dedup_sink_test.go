package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"donation-gateway/internal/core/domain"
)

// fakeStore mimics SETNX/DEL semantics in memory.
type fakeStore struct {
	mu     sync.Mutex
	keys   map[string]bool
	setErr error
}

func newFakeStore() *fakeStore { return &fakeStore{keys: map[string]bool{}} }

func (f *fakeStore) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	if f.keys[key] {
		return redis.NewBoolResult(false, nil)
	}
	f.keys[key] = true
	return redis.NewBoolResult(true, nil)
}

func (f *fakeStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if f.keys[k] {
			delete(f.keys, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Publish(ctx context.Context, n domain.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestDedupSink_SuppressesRedelivery(t *testing.T) {
	// Arrange
	store := newFakeStore()
	next := new(MockSink)
	n := domain.Notification{Kind: domain.NotifyDonationConfirmed, IdempotencyKey: "k1"}
	next.On("Publish", mock.Anything, n).Return(nil).Once()
	sink := NewDedupSink(store, next, time.Hour, discard())

	// Act
	err1 := sink.Publish(t.Context(), n)
	err2 := sink.Publish(t.Context(), n)

	// Assert
	require.NoError(t, err1)
	require.NoError(t, err2)
	next.AssertNumberOfCalls(t, "Publish", 1)
}

func TestDedupSink_ReleasesClaimOnFailure(t *testing.T) {
	store := newFakeStore()
	next := new(MockSink)
	n := domain.Notification{Kind: domain.NotifyRefund, IdempotencyKey: "k2"}
	next.On("Publish", mock.Anything, n).Return(errors.New("kafka down")).Once()
	next.On("Publish", mock.Anything, n).Return(nil).Once()
	sink := NewDedupSink(store, next, time.Hour, discard())

	err := sink.Publish(t.Context(), n)
	require.Error(t, err)
	assert.NotContains(t, store.keys, keyPrefix+"k2")

	err = sink.Publish(t.Context(), n)
	require.NoError(t, err)
	next.AssertNumberOfCalls(t, "Publish", 2)
}

func TestDedupSink_StoreFailure(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("connection refused")
	next := new(MockSink)
	sink := NewDedupSink(store, next, time.Hour, discard())

	err := sink.Publish(t.Context(), domain.Notification{Kind: domain.NotifyRefund, IdempotencyKey: "k3"})

	require.Error(t, err)
	next.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestDedupSink_NoKeyPassesThrough(t *testing.T) {
	store := newFakeStore()
	next := new(MockSink)
	n := domain.Notification{Kind: domain.NotifyRefund}
	next.On("Publish", mock.Anything, n).Return(nil).Twice()
	sink := NewDedupSink(store, next, time.Hour, discard())

	require.NoError(t, sink.Publish(t.Context(), n))
	require.NoError(t, sink.Publish(t.Context(), n))
	next.AssertExpectations(t)
}
