package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"evrental/internal/db"
	"evrental/internal/entities"
	apperrors "evrental/internal/errors"
)

const rentalColumns = `id, code, unit_id, renter_id, station_id, assigned_staff_id,
	renter_name, renter_email, renter_phone,
	initial_battery, final_battery, init_bike_condition, final_bike_condition, note,
	reserved_at, started_at, returned_at, cancel_reason,
	deposit, fee, state, created_at, updated_at`

type RentalRepository struct {
	DB *sql.DB
}

func NewRentalRepository(database *sql.DB) *RentalRepository {
	return &RentalRepository{DB: database}
}

func scanRental(row interface{ Scan(...any) error }) (*db.Rental, error) {
	var r db.Rental
	err := row.Scan(
		&r.ID, &r.Code, &r.UnitID, &r.RenterID, &r.StationID, &r.AssignedStaffID,
		&r.RenterName, &r.RenterEmail, &r.RenterPhone,
		&r.InitialBattery, &r.FinalBattery, &r.InitBikeCondition, &r.FinalBikeCondition, &r.Note,
		&r.ReservedAt, &r.StartedAt, &r.ReturnedAt, &r.CancelReason,
		&r.Deposit, &r.Fee, &r.State, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning rental: %w", err)
	}
	return &r, nil
}

func (r *RentalRepository) Insert(ctx context.Context, tx *sql.Tx, rental *db.Rental) error {
	query := `
		INSERT INTO rentals
		(code, unit_id, renter_id, station_id, renter_name, renter_email, renter_phone,
		 reserved_at, deposit, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := tx.QueryRowContext(ctx, query,
		rental.Code, rental.UnitID, rental.RenterID, rental.StationID,
		rental.RenterName, rental.RenterEmail, rental.RenterPhone,
		rental.ReservedAt, rental.Deposit, rental.State,
	).Scan(&rental.ID, &rental.CreatedAt, &rental.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating rental: %w", err)
	}
	return nil
}

// GetForUpdate locks the rental row for the duration of the transaction.
// Every state-machine operation goes through this lock, so racing
// handover/cancel/callback calls on the same rental serialize here.
func (r *RentalRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, id int) (*db.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1 FOR UPDATE`
	return scanRental(tx.QueryRowContext(ctx, query, id))
}

func (r *RentalRepository) GetByID(ctx context.Context, id int) (*db.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE id = $1`
	return scanRental(r.DB.QueryRowContext(ctx, query, id))
}

func (r *RentalRepository) GetByCode(ctx context.Context, code string) (*db.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE code = $1`
	return scanRental(r.DB.QueryRowContext(ctx, query, code))
}

func (r *RentalRepository) MarkStarted(ctx context.Context, tx *sql.Tx, id, staffID, initialBattery int, condition, note string, at time.Time) error {
	query := `
		UPDATE rentals
		SET state = $1, assigned_staff_id = $2, initial_battery = $3,
		    init_bike_condition = $4, note = COALESCE(NULLIF($5, ''), note),
		    started_at = $6, updated_at = NOW()
		WHERE id = $7`
	_, err := tx.ExecContext(ctx, query, db.RentalOnGoing, staffID, initialBattery, condition, note, at, id)
	if err != nil {
		return fmt.Errorf("error marking rental %d started: %w", id, err)
	}
	return nil
}

func (r *RentalRepository) MarkCompleted(ctx context.Context, tx *sql.Tx, id, staffID, finalBattery int, condition string, fee int64, note string, at time.Time) error {
	query := `
		UPDATE rentals
		SET state = $1, assigned_staff_id = $2, final_battery = $3,
		    final_bike_condition = $4, fee = $5, note = COALESCE(NULLIF($6, ''), note),
		    returned_at = $7, updated_at = NOW()
		WHERE id = $8`
	_, err := tx.ExecContext(ctx, query, db.RentalCompleted, staffID, finalBattery, condition, fee, note, at, id)
	if err != nil {
		return fmt.Errorf("error marking rental %d completed: %w", id, err)
	}
	return nil
}

func (r *RentalRepository) MarkCancelled(ctx context.Context, tx *sql.Tx, id int, reason string) error {
	query := `
		UPDATE rentals
		SET state = $1, cancel_reason = $2, updated_at = NOW()
		WHERE id = $3`
	_, err := tx.ExecContext(ctx, query, db.RentalCancelled, reason, id)
	if err != nil {
		return fmt.Errorf("error marking rental %d cancelled: %w", id, err)
	}
	return nil
}

func (r *RentalRepository) List(ctx context.Context, filter entities.RentalFilter) ([]db.Rental, error) {
	query := `SELECT ` + rentalColumns + ` FROM rentals WHERE 1=1`
	args := []any{}
	idx := 1

	if filter.RenterID > 0 {
		query += " AND renter_id = $" + strconv.Itoa(idx)
		args = append(args, filter.RenterID)
		idx++
	}
	if filter.StationID > 0 {
		query += " AND station_id = $" + strconv.Itoa(idx)
		args = append(args, filter.StationID)
		idx++
	}
	if filter.StaffID > 0 {
		query += " AND assigned_staff_id = $" + strconv.Itoa(idx)
		args = append(args, filter.StaffID)
		idx++
	}
	if filter.State != "" {
		query += " AND state = $" + strconv.Itoa(idx)
		args = append(args, filter.State)
		idx++
	}
	query += " ORDER BY reserved_at DESC"

	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing rentals: %w", err)
	}
	defer rows.Close()

	var rentals []db.Rental
	for rows.Next() {
		rental, err := scanRental(rows)
		if err != nil {
			return nil, err
		}
		rentals = append(rentals, *rental)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating rentals: %w", err)
	}
	return rentals, nil
}
