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

const unitColumns = `id, bike_model_id, station_id, license_plate, battery_level, state, retired_at, created_at, updated_at`

type UnitRepository struct {
	DB *sql.DB
}

func NewUnitRepository(database *sql.DB) *UnitRepository {
	return &UnitRepository{DB: database}
}

func scanUnit(row interface{ Scan(...any) error }) (*db.BikeUnit, error) {
	var u db.BikeUnit
	err := row.Scan(&u.ID, &u.BikeModelID, &u.StationID, &u.LicensePlate,
		&u.BatteryLevel, &u.State, &u.RetiredAt, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("error scanning bike unit: %w", err)
	}
	return &u, nil
}

func (r *UnitRepository) Create(ctx context.Context, u *db.BikeUnit) error {
	query := `
		INSERT INTO bike_units (bike_model_id, station_id, license_plate, battery_level, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING id, created_at, updated_at`
	err := r.DB.QueryRowContext(ctx, query,
		u.BikeModelID, u.StationID, u.LicensePlate, u.BatteryLevel, u.State,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating bike unit: %w", err)
	}
	return nil
}

func (r *UnitRepository) GetByID(ctx context.Context, id int) (*db.BikeUnit, error) {
	query := `SELECT ` + unitColumns + ` FROM bike_units WHERE id = $1`
	return scanUnit(r.DB.QueryRowContext(ctx, query, id))
}

func (r *UnitRepository) ListAvailableByStation(ctx context.Context, stationID int) ([]db.BikeUnit, error) {
	query := `
		SELECT ` + unitColumns + `
		FROM bike_units
		WHERE station_id = $1 AND state = $2 AND retired_at IS NULL
		ORDER BY id`
	rows, err := r.DB.QueryContext(ctx, query, stationID, db.UnitAvailable)
	if err != nil {
		return nil, fmt.Errorf("error listing available units: %w", err)
	}
	defer rows.Close()

	var units []db.BikeUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, *u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error after iterating units: %w", err)
	}
	return units, nil
}

// Transition moves a unit between states with a guarded UPDATE. It reports
// whether a row actually changed, which is the compare-and-swap that keeps
// two reservations from claiming the same unit.
func (r *UnitRepository) Transition(ctx context.Context, tx *sql.Tx, id int, from []string, to string, battery *int) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if battery != nil {
		query := `
			UPDATE bike_units
			SET state = $1, battery_level = $2, updated_at = NOW()
			WHERE id = $3 AND state = ANY($4) AND retired_at IS NULL`
		res, err = tx.ExecContext(ctx, query, to, *battery, id, pq.Array(from))
	} else {
		query := `
			UPDATE bike_units
			SET state = $1, updated_at = NOW()
			WHERE id = $2 AND state = ANY($3) AND retired_at IS NULL`
		res, err = tx.ExecContext(ctx, query, to, id, pq.Array(from))
	}
	if err != nil {
		return false, fmt.Errorf("error transitioning unit %d to %s: %w", id, to, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Exists reports whether a non-retired unit row exists, used to tell
// not-found from not-available after a failed transition.
func (r *UnitRepository) Exists(ctx context.Context, tx *sql.Tx, id int) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, `SELECT 1 FROM bike_units WHERE id = $1 AND retired_at IS NULL`, id).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("error checking unit %d: %w", id, err)
	}
	return true, nil
}

// Retire soft-retires a unit. Only idle units can be retired; a unit that is
// reserved or rented still belongs to a live rental.
func (r *UnitRepository) Retire(ctx context.Context, id int) (bool, error) {
	query := `
		UPDATE bike_units
		SET retired_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND retired_at IS NULL AND state = ANY($2)`
	res, err := r.DB.ExecContext(ctx, query, id, pq.Array([]string{db.UnitAvailable, db.UnitMaintenance}))
	if err != nil {
		return false, fmt.Errorf("error retiring unit %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// UpdateBattery sets the battery level outside a rental transition, e.g.
// after a station swap or maintenance charge.
func (r *UnitRepository) UpdateBattery(ctx context.Context, id, battery int) error {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE bike_units SET battery_level = $1, updated_at = NOW() WHERE id = $2 AND retired_at IS NULL`,
		battery, id)
	if err != nil {
		return fmt.Errorf("error updating battery for unit %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// ReturnFromMaintenance puts a serviced unit back into the available pool.
func (r *UnitRepository) ReturnFromMaintenance(ctx context.Context, id int) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		`UPDATE bike_units SET state = $1, updated_at = NOW() WHERE id = $2 AND state = $3 AND retired_at IS NULL`,
		db.UnitAvailable, id, db.UnitMaintenance)
	if err != nil {
		return false, fmt.Errorf("error releasing unit %d from maintenance: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
