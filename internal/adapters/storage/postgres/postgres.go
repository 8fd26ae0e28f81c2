package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"donation-gateway/internal/core/domain"
	"donation-gateway/internal/core/ports"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is the part of *pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository is the PostgreSQL implementation of the ChargeRecorder port.
// It keeps the externalReference -> providerTransactionId mapping and the latest status.
type Repository struct {
	db     DB
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.ChargeRecorder = (*Repository)(nil)

// NewPool connects to the database and checks the connection.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}

// Migrate applies the embedded goose migrations through a database/sql view of the pool.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// NewRepository creates a new repository instance.
func NewRepository(db DB, logger *slog.Logger) *Repository {
	return &Repository{db: db, logger: logger, now: time.Now}
}

// SaveCharge records a successful submission. Re-saving the same externalReference is a no-op.
func (r *Repository) SaveCharge(ctx context.Context, intent domain.PaymentIntent, charge domain.ChargeResult) error {
	const sql = `
		INSERT INTO donations
		    (external_reference, provider_id, instrument, status, amount_minor_units,
		     installment_count, donor_tax_id, donor_email, created_at, updated_at)
		VALUES
		    ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (external_reference) DO NOTHING
	`
	_, err := r.db.Exec(ctx, sql,
		intent.ExternalReference,
		charge.ProviderID,
		string(charge.Instrument),
		string(charge.Status),
		charge.AmountMinorUnits,
		intent.InstallmentCount,
		intent.Customer.TaxID,
		intent.Customer.Email,
		r.now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save donation: %w", err)
	}
	return nil
}

// UpdateStatus applies a webhook status. Unknown provider ids are ignored.
func (r *Repository) UpdateStatus(ctx context.Context, providerTransactionID string, status domain.ChargeStatus) error {
	const sql = `UPDATE donations SET status = $1, updated_at = $2 WHERE provider_id = $3`
	tag, err := r.db.Exec(ctx, sql, string(status), r.now().UTC(), providerTransactionID)
	if err != nil {
		return fmt.Errorf("failed to update donation status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.Debug("status update for unknown charge", "provider_transaction_id", providerTransactionID)
	}
	return nil
}
