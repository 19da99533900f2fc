package repository

import (
	"context"
	"database/sql"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"evrental/internal/db"
)

type StaffAuthRepository interface {
	GetByEmail(ctx context.Context, email string) (*db.StationStaff, error)
	CreateStaff(ctx context.Context, name, email, password string, stationID int) error
}

type staffAuthRepository struct {
	db *sql.DB
}

func NewStaffAuthRepository(database *sql.DB) StaffAuthRepository {
	return &staffAuthRepository{db: database}
}

func (r *staffAuthRepository) GetByEmail(ctx context.Context, email string) (*db.StationStaff, error) {
	var staff db.StationStaff
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, station_id FROM station_staff WHERE email = $1`, email).
		Scan(&staff.ID, &staff.Name, &staff.Email, &staff.PasswordHash, &staff.StationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &staff, nil
}

func (r *staffAuthRepository) CreateStaff(ctx context.Context, name, email, password string, stationID int) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO station_staff (name, email, password_hash, station_id) VALUES ($1, $2, $3, $4)`,
		name, email, hashedPassword, stationID)
	return err
}
