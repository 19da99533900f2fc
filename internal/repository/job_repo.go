package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"evrental/internal/db"
)

type JobRepository struct {
	DB *sql.DB
}

func NewJobRepository(database *sql.DB) *JobRepository {
	return &JobRepository{DB: database}
}

// StaleReservedRentalIDs returns reserved rentals whose deposit has been
// pending since before the cutoff. These are booking attempts the renter
// abandoned at checkout; the sweep cancels them through the state machine.
func (r *JobRepository) StaleReservedRentalIDs(ctx context.Context, before time.Time) ([]int, error) {
	query := `
		SELECT r.id
		FROM rentals r
		JOIN payment_records p ON p.rental_id = r.id AND p.type = $1
		WHERE r.state = $2 AND p.status = $3 AND p.created_at < $4
		ORDER BY r.id`
	rows, err := r.DB.QueryContext(ctx, query, db.PaymentDeposit, db.RentalReserved, db.PaymentPending, before)
	if err != nil {
		return nil, fmt.Errorf("error querying stale reserved rentals: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("error scanning rental ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rows: %w", err)
	}
	return ids, nil
}
