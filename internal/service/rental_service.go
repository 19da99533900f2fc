package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"evrental/internal/db"
	"evrental/internal/entities"
	apperrors "evrental/internal/errors"
)

// RentalStore is the rental persistence surface. Implemented by
// repository.RentalRepository.
type RentalStore interface {
	Insert(ctx context.Context, tx *sql.Tx, rental *db.Rental) error
	GetForUpdate(ctx context.Context, tx *sql.Tx, id int) (*db.Rental, error)
	GetByID(ctx context.Context, id int) (*db.Rental, error)
	GetByCode(ctx context.Context, code string) (*db.Rental, error)
	MarkStarted(ctx context.Context, tx *sql.Tx, id, staffID, initialBattery int, condition, note string, at time.Time) error
	MarkCompleted(ctx context.Context, tx *sql.Tx, id, staffID, finalBattery int, condition string, fee int64, note string, at time.Time) error
	MarkCancelled(ctx context.Context, tx *sql.Tx, id int, reason string) error
	List(ctx context.Context, filter entities.RentalFilter) ([]db.Rental, error)
}

// Ledger is the inventory side the state machine drives. Implemented by
// InventoryService.
type Ledger interface {
	TryReserve(ctx context.Context, tx *sql.Tx, unitID int) error
	MarkRented(ctx context.Context, tx *sql.Tx, unitID int) error
	Release(ctx context.Context, tx *sql.Tx, unitID int, outcome string, battery *int) error
}

// PaymentGateway is what the state machine sees of the reconciliation
// adapter: request charges/refunds, read statuses. Implemented by
// PaymentService.
type PaymentGateway interface {
	RequestDeposit(ctx context.Context, tx *sql.Tx, rental *db.Rental) (*db.PaymentRecord, error)
	RequestFee(ctx context.Context, tx *sql.Tx, rental *db.Rental, amount int64) (*db.PaymentRecord, error)
	RequestRefund(ctx context.Context, tx *sql.Tx, rental *db.Rental, deposit *db.PaymentRecord) (*db.PaymentRecord, error)
	GetByID(ctx context.Context, id int64) (*db.PaymentRecord, error)
	DepositFor(ctx context.Context, rentalID int) (*db.PaymentRecord, error)
	RefundFor(ctx context.Context, rentalID int) (*db.PaymentRecord, error)
}

// Notifier delivers fire-and-forget status notifications to renters.
type Notifier interface {
	NotifyRentalStatus(rental *db.Rental, status string)
}

// RentalService owns the rental lifecycle. It is the only writer of rental
// state; every operation runs in one transaction with the rental row locked,
// so racing handover/cancel/callback calls serialize per rental and the loser
// observes the already-changed state.
type RentalService struct {
	DB       *sql.DB
	Rentals  RentalStore
	Ledger   Ledger
	Payments PaymentGateway
	Notifier Notifier
}

func NewRentalService(database *sql.DB, rentals RentalStore, ledger Ledger, payments PaymentGateway, notifier Notifier) *RentalService {
	return &RentalService{DB: database, Rentals: rentals, Ledger: ledger, Payments: payments, Notifier: notifier}
}

func (s *RentalService) notify(rental *db.Rental, status string) {
	if s.Notifier != nil {
		s.Notifier.NotifyRentalStatus(rental, status)
	}
}

// Create books a unit: reserve it in the ledger, insert the rental and open
// the deposit charge, all in one transaction. A ledger refusal propagates
// without leaving any row behind.
func (s *RentalService) Create(ctx context.Context, req entities.CreateRentalRequest) (created *entities.RentalCreated, err error) {
	code := fmt.Sprintf("%08X", time.Now().UnixNano()%100000000)
	rental := &db.Rental{
		Code:        code,
		UnitID:      req.UnitID,
		RenterID:    req.RenterID,
		StationID:   req.StationID,
		RenterName:  req.RenterName,
		RenterEmail: req.RenterEmail,
		RenterPhone: req.RenterPhone,
		ReservedAt:  time.Now().UTC(),
		Deposit:     req.Deposit,
		State:       db.RentalReserved,
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.Ledger.TryReserve(ctx, tx, req.UnitID); err != nil {
		return nil, err
	}
	if err = s.Rentals.Insert(ctx, tx, rental); err != nil {
		return nil, err
	}
	deposit, err := s.Payments.RequestDeposit(ctx, tx, rental)
	if err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return &entities.RentalCreated{
		Rental:     entities.NewRentalResponse(rental),
		PaymentID:  deposit.ID,
		PaymentURL: deposit.PaymentURL,
	}, nil
}

// ConfirmStart is the staff handover: reserved -> ongoing. Requires the
// deposit to be completed; records who handed the bike over and its state at
// that moment.
func (s *RentalService) ConfirmStart(ctx context.Context, rentalID, staffID, initialBattery int, condition, note string) (rental *db.Rental, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rental, err = s.Rentals.GetForUpdate(ctx, tx, rentalID)
	if err != nil {
		return nil, err
	}
	if !rental.CanTransition(db.RentalOnGoing) {
		return nil, apperrors.ErrInvalidTransition
	}

	deposit, err := s.Payments.DepositFor(ctx, rental.ID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if deposit == nil || deposit.Status != db.PaymentCompleted {
		return nil, apperrors.ErrPaymentNotConfirmed
	}

	if err = s.Ledger.MarkRented(ctx, tx, rental.UnitID); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err = s.Rentals.MarkStarted(ctx, tx, rental.ID, staffID, initialBattery, condition, note, now); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	rental.State = db.RentalOnGoing
	rental.AssignedStaffID = &staffID
	rental.InitialBattery = &initialBattery
	rental.InitBikeCondition = &condition
	rental.StartedAt = &now
	s.notify(rental, "started")
	return rental, nil
}

// Complete is the staff return: ongoing -> completed. Final battery and
// condition decide whether the unit goes back to the pool or to maintenance;
// a non-zero fee opens a fee charge.
func (s *RentalService) Complete(ctx context.Context, rentalID, staffID, finalBattery int, condition string, damaged bool, fee int64, note string) (rental *db.Rental, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rental, err = s.Rentals.GetForUpdate(ctx, tx, rentalID)
	if err != nil {
		return nil, err
	}
	if !rental.CanTransition(db.RentalCompleted) {
		return nil, apperrors.ErrInvalidTransition
	}

	outcome := db.ReleaseOutcome(finalBattery, damaged)
	if err = s.Ledger.Release(ctx, tx, rental.UnitID, outcome, &finalBattery); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if err = s.Rentals.MarkCompleted(ctx, tx, rental.ID, staffID, finalBattery, condition, fee, note, now); err != nil {
		return nil, err
	}
	if fee > 0 {
		if _, err = s.Payments.RequestFee(ctx, tx, rental, fee); err != nil {
			return nil, err
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	rental.State = db.RentalCompleted
	rental.AssignedStaffID = &staffID
	rental.FinalBattery = &finalBattery
	rental.FinalBikeCondition = &condition
	rental.Fee = &fee
	rental.ReturnedAt = &now
	s.notify(rental, "completed")
	return rental, nil
}

// Cancel aborts a reserved rental: the unit returns to the available pool and
// a completed deposit is refunded. Cancelling an already-cancelled rental is
// a no-op, so the automatic path (deposit failure, expiry sweep) and a
// renter-initiated cancel can race without duplicate refunds.
func (s *RentalService) Cancel(ctx context.Context, rentalID int, reason string) (rental *db.Rental, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rental, err = s.Rentals.GetForUpdate(ctx, tx, rentalID)
	if err != nil {
		return nil, err
	}
	if rental.State == db.RentalCancelled {
		return rental, tx.Commit()
	}
	if !rental.CanTransition(db.RentalCancelled) {
		return nil, apperrors.ErrInvalidTransition
	}

	if err = s.Ledger.Release(ctx, tx, rental.UnitID, db.UnitAvailable, nil); err != nil {
		return nil, err
	}

	deposit, err := s.Payments.DepositFor(ctx, rental.ID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if deposit != nil && deposit.Status == db.PaymentCompleted {
		if _, err = s.Payments.RequestRefund(ctx, tx, rental, deposit); err != nil {
			return nil, err
		}
	}

	if err = s.Rentals.MarkCancelled(ctx, tx, rental.ID, reason); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, err
	}

	rental.State = db.RentalCancelled
	rental.CancelReason = &reason
	s.notify(rental, "cancelled")
	return rental, nil
}

// OnPaymentResult feeds a settled payment back into the state machine. A
// failed deposit cancels the reservation automatically; fee and refund
// outcomes only ever touch the payment record, which the adapter has already
// updated.
func (s *RentalService) OnPaymentResult(ctx context.Context, paymentID int64) error {
	rec, err := s.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if rec.Type != db.PaymentDeposit {
		return nil
	}

	switch rec.Status {
	case db.PaymentFailed:
		if _, err := s.Cancel(ctx, rec.RentalID, "deposit payment failed"); err != nil {
			return fmt.Errorf("error auto-cancelling rental %d: %w", rec.RentalID, err)
		}
	case db.PaymentCompleted:
		return s.onDepositCompleted(ctx, rec)
	}
	return nil
}

// onDepositCompleted handles a deposit settling as completed. The rental row
// is locked first: a cancel that committed while the charge was in flight saw
// a pending deposit and skipped the refund, so the captured money is refunded
// here. At most one refund record per rental.
func (s *RentalService) onDepositCompleted(ctx context.Context, deposit *db.PaymentRecord) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rental, err := s.Rentals.GetForUpdate(ctx, tx, deposit.RentalID)
	if err != nil {
		return err
	}
	if rental.State != db.RentalCancelled {
		if err = tx.Commit(); err != nil {
			return err
		}
		s.notify(rental, "deposit confirmed")
		return nil
	}

	refund, err := s.Payments.RefundFor(ctx, rental.ID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	if refund != nil {
		return tx.Commit()
	}
	log.Printf("deposit %d settled after rental %d was cancelled, refunding", deposit.ID, rental.ID)
	if _, err = s.Payments.RequestRefund(ctx, tx, rental, deposit); err != nil {
		return err
	}
	return tx.Commit()
}

// Reads for the API layer.

func (s *RentalService) GetByID(ctx context.Context, id int) (*db.Rental, error) {
	return s.Rentals.GetByID(ctx, id)
}

func (s *RentalService) GetByCode(ctx context.Context, code string) (*db.Rental, error) {
	return s.Rentals.GetByCode(ctx, code)
}

func (s *RentalService) List(ctx context.Context, filter entities.RentalFilter) ([]db.Rental, error) {
	return s.Rentals.List(ctx, filter)
}
