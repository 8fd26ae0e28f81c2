package postgres

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"donation-gateway/internal/core/domain"
)

type MockDB struct {
	mock.Mock
}

func (m *MockDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	called := m.Called(ctx, sql, args)
	return called.Get(0).(pgconn.CommandTag), called.Error(1)
}

func newRepo(db DB) *Repository {
	r := NewRepository(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestSaveCharge(t *testing.T) {
	db := new(MockDB)
	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(args []any) bool {
		return len(args) == 9 && args[0] == "DONATION-1-ABCDEF12" && args[1] == "pay_1" && args[4] == int64(1000)
	})).Return(pgconn.NewCommandTag("INSERT 0 1"), nil).Once()

	err := newRepo(db).SaveCharge(t.Context(),
		domain.PaymentIntent{ExternalReference: "DONATION-1-ABCDEF12", InstallmentCount: 1, Customer: domain.Customer{TaxID: "52998224725"}},
		domain.ChargeResult{ProviderID: "pay_1", Instrument: domain.InstrumentPix, Status: domain.StatusPending, AmountMinorUnits: 1000},
	)

	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestUpdateStatus(t *testing.T) {
	t.Run("unknown charge is not an error", func(t *testing.T) {
		db := new(MockDB)
		db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.NewCommandTag("UPDATE 0"), nil)

		err := newRepo(db).UpdateStatus(t.Context(), "pay_x", domain.StatusPaid)

		assert.NoError(t, err)
	})

	t.Run("database failure is wrapped", func(t *testing.T) {
		db := new(MockDB)
		dbErr := errors.New("conn reset")
		db.On("Exec", mock.Anything, mock.Anything, mock.Anything).Return(pgconn.CommandTag{}, dbErr)

		err := newRepo(db).UpdateStatus(t.Context(), "pay_x", domain.StatusPaid)

		assert.ErrorIs(t, err, dbErr)
	})
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}
