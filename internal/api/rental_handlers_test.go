package api

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evrental/internal/auth"
	"evrental/internal/db"
	"evrental/internal/entities"
	apperrors "evrental/internal/errors"
	"evrental/internal/service"
)

// A no-op database/sql driver backing the service transactions; the stores
// are stubbed, so no statement ever reaches it.
type stubDriver struct{}

func (stubDriver) Open(string) (driver.Conn, error) { return stubConn{}, nil }

type stubConn struct{}

func (stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("stub driver does not execute statements")
}
func (stubConn) Close() error              { return nil }
func (stubConn) Begin() (driver.Tx, error) { return stubTx{}, nil }

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

func init() {
	sql.Register("apistub", stubDriver{})
}

type stubRentalStore struct {
	rental *db.Rental

	listFilter     entities.RentalFilter
	startedStaffID int
}

func (s *stubRentalStore) Insert(_ context.Context, _ *sql.Tx, _ *db.Rental) error { return nil }

func (s *stubRentalStore) GetForUpdate(_ context.Context, _ *sql.Tx, _ int) (*db.Rental, error) {
	return s.rental, nil
}

func (s *stubRentalStore) GetByID(_ context.Context, _ int) (*db.Rental, error) {
	return s.rental, nil
}

func (s *stubRentalStore) GetByCode(_ context.Context, _ string) (*db.Rental, error) {
	return s.rental, nil
}

func (s *stubRentalStore) MarkStarted(_ context.Context, _ *sql.Tx, _, staffID, _ int, _, _ string, _ time.Time) error {
	s.startedStaffID = staffID
	return nil
}

func (s *stubRentalStore) MarkCompleted(_ context.Context, _ *sql.Tx, _, _, _ int, _ string, _ int64, _ string, _ time.Time) error {
	return nil
}

func (s *stubRentalStore) MarkCancelled(_ context.Context, _ *sql.Tx, _ int, _ string) error {
	return nil
}

func (s *stubRentalStore) List(_ context.Context, filter entities.RentalFilter) ([]db.Rental, error) {
	s.listFilter = filter
	return nil, nil
}

type stubLedger struct{}

func (stubLedger) TryReserve(_ context.Context, _ *sql.Tx, _ int) error { return nil }
func (stubLedger) MarkRented(_ context.Context, _ *sql.Tx, _ int) error { return nil }
func (stubLedger) Release(_ context.Context, _ *sql.Tx, _ int, _ string, _ *int) error {
	return nil
}

type stubPayments struct{}

func (stubPayments) RequestDeposit(_ context.Context, _ *sql.Tx, _ *db.Rental) (*db.PaymentRecord, error) {
	return &db.PaymentRecord{ID: 101}, nil
}

func (stubPayments) RequestFee(_ context.Context, _ *sql.Tx, _ *db.Rental, _ int64) (*db.PaymentRecord, error) {
	return &db.PaymentRecord{ID: 102}, nil
}

func (stubPayments) RequestRefund(_ context.Context, _ *sql.Tx, _ *db.Rental, _ *db.PaymentRecord) (*db.PaymentRecord, error) {
	return &db.PaymentRecord{ID: 103}, nil
}

func (stubPayments) GetByID(_ context.Context, _ int64) (*db.PaymentRecord, error) {
	return nil, apperrors.ErrNotFound
}

func (stubPayments) DepositFor(_ context.Context, _ int) (*db.PaymentRecord, error) {
	return &db.PaymentRecord{ID: 101, Type: db.PaymentDeposit, Status: db.PaymentCompleted}, nil
}

func (stubPayments) RefundFor(_ context.Context, _ int) (*db.PaymentRecord, error) {
	return nil, apperrors.ErrNotFound
}

func newStaffRouter(t *testing.T, store *stubRentalStore) *mux.Router {
	t.Helper()
	database, err := sql.Open("apistub", "")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	rentals := service.NewRentalService(database, store, stubLedger{}, stubPayments{}, nil)
	handler := NewRentalHandler(rentals, nil)

	r := mux.NewRouter()
	staff := r.PathPrefix("/staff").Subrouter()
	staff.Use(auth.StaffAuthMiddleware)
	staff.HandleFunc("/rentals", handler.ListRentals).Methods("GET")
	staff.HandleFunc("/rentals/{id}/handover", handler.HandOver).Methods("POST")
	return r
}

func staffToken(t *testing.T, staffID, stationID int) string {
	t.Helper()
	claims := jwt.MapClaims{
		"staff_id":   staffID,
		"station_id": stationID,
		"exp":        time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestListRentalsScopedToStaffStation(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := &stubRentalStore{}
	router := newStaffRouter(t, store)

	req := httptest.NewRequest(http.MethodGet, "/staff/rentals", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, 5, 3))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, store.listFilter.StationID)
}

func TestListRentalsExplicitStationWins(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := &stubRentalStore{}
	router := newStaffRouter(t, store)

	req := httptest.NewRequest(http.MethodGet, "/staff/rentals?station_id=9", nil)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, 5, 3))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 9, store.listFilter.StationID)
}

func TestHandOverUsesTokenStaffIdentity(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := &stubRentalStore{rental: &db.Rental{ID: 42, UnitID: 7, State: db.RentalReserved}}
	router := newStaffRouter(t, store)

	// No staff_id in the body: the JWT claim identifies the staff member.
	body := strings.NewReader(`{"initial_battery": 96, "init_bike_condition": "good"}`)
	req := httptest.NewRequest(http.MethodPost, "/staff/rentals/42/handover", body)
	req.Header.Set("Authorization", "Bearer "+staffToken(t, 5, 3))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 5, store.startedStaffID)
}

func TestHandOverRejectsMissingToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	store := &stubRentalStore{rental: &db.Rental{ID: 42, UnitID: 7, State: db.RentalReserved}}
	router := newStaffRouter(t, store)

	body := strings.NewReader(`{"initial_battery": 96}`)
	req := httptest.NewRequest(http.MethodPost, "/staff/rentals/42/handover", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
