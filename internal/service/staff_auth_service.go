package service

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"evrental/internal/repository"
)

type StaffAuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
	CreateStaff(ctx context.Context, name, email, password string, stationID int) error
}

type staffAuthService struct {
	repo repository.StaffAuthRepository
}

func NewStaffAuthService(repo repository.StaffAuthRepository) StaffAuthService {
	return &staffAuthService{repo: repo}
}

func (s *staffAuthService) Login(ctx context.Context, email, password string) (string, error) {
	staff, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	if staff == nil {
		return "", errors.New("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("invalid credentials")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		return "", errors.New("JWT_SECRET not set")
	}

	claims := jwt.MapClaims{
		"staff_id":   staff.ID,
		"station_id": staff.StationID,
		"email":      staff.Email,
		"exp":        time.Now().Add(8 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

func (s *staffAuthService) CreateStaff(ctx context.Context, name, email, password string, stationID int) error {
	if email == "" || password == "" {
		return errors.New("email and password cannot be empty")
	}
	return s.repo.CreateStaff(ctx, name, email, password, stationID)
}
