package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"evrental/internal/db"
	apperrors "evrental/internal/errors"
)

const paymentColumns = `id, rental_id, amount, method, type, status, provider_ref, payment_url, created_at, updated_at`

type PaymentRepository struct {
	DB *sql.DB
}

func NewPaymentRepository(database *sql.DB) *PaymentRepository {
	return &PaymentRepository{DB: database}
}

func scanPayment(row interface{ Scan(...any) error }) (*db.PaymentRecord, error) {
	var p db.PaymentRecord
	err := row.Scan(&p.ID, &p.RentalID, &p.Amount, &p.Method, &p.Type, &p.Status,
		&p.ProviderRef, &p.PaymentURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning payment record: %w", err)
	}
	return &p, nil
}

func (r *PaymentRepository) Insert(ctx context.Context, tx *sql.Tx, p *db.PaymentRecord) error {
	query := `
		INSERT INTO payment_records (rental_id, amount, method, type, status, provider_ref, payment_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := tx.QueryRowContext(ctx, query,
		p.RentalID, p.Amount, p.Method, p.Type, p.Status, p.ProviderRef, p.PaymentURL,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating payment record: %w", err)
	}
	return nil
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*db.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE id = $1`
	return scanPayment(r.DB.QueryRowContext(ctx, query, id))
}

// GetDeposit returns the rental's deposit record. The state machine reads it
// to gate handover; it never writes payment rows.
func (r *PaymentRepository) GetDeposit(ctx context.Context, rentalID int) (*db.PaymentRecord, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_records
		WHERE rental_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1`
	return scanPayment(r.DB.QueryRowContext(ctx, query, rentalID, db.PaymentDeposit))
}

// GetRefund returns the rental's refund record, if one was ever issued. The
// state machine checks it before refunding so a rental is refunded at most
// once.
func (r *PaymentRepository) GetRefund(ctx context.Context, rentalID int) (*db.PaymentRecord, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_records
		WHERE rental_id = $1 AND type = $2
		ORDER BY created_at DESC
		LIMIT 1`
	return scanPayment(r.DB.QueryRowContext(ctx, query, rentalID, db.PaymentRefund))
}

// GetByProviderRefForUpdate locks the record matching a provider reference so
// duplicate webhook deliveries resolve it exactly once.
func (r *PaymentRepository) GetByProviderRefForUpdate(ctx context.Context, tx *sql.Tx, ref string, types []string) (*db.PaymentRecord, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payment_records
		WHERE provider_ref = $1 AND type = ANY($2)
		ORDER BY created_at DESC
		LIMIT 1
		FOR UPDATE`
	return scanPayment(tx.QueryRowContext(ctx, query, ref, pq.Array(types)))
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE payment_records SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, id)
	if err != nil {
		return fmt.Errorf("error updating payment %d status: %w", id, err)
	}
	return nil
}

func (r *PaymentRepository) ListByRental(ctx context.Context, rentalID int) ([]db.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payment_records WHERE rental_id = $1 ORDER BY created_at`
	rows, err := r.DB.QueryContext(ctx, query, rentalID)
	if err != nil {
		return nil, fmt.Errorf("error listing payments for rental %d: %w", rentalID, err)
	}
	defer rows.Close()

	var records []db.PaymentRecord
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating payment records: %w", err)
	}
	return records, nil
}
