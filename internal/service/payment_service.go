package service

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"evrental/internal/db"
)

// PaymentStore is the payment-record persistence surface. Implemented by
// repository.PaymentRepository. Payment rows are written only through this
// adapter; the state machine reads them via the gateway, never writes.
type PaymentStore interface {
	Insert(ctx context.Context, tx *sql.Tx, p *db.PaymentRecord) error
	GetByID(ctx context.Context, id int64) (*db.PaymentRecord, error)
	GetDeposit(ctx context.Context, rentalID int) (*db.PaymentRecord, error)
	GetRefund(ctx context.Context, rentalID int) (*db.PaymentRecord, error)
	GetByProviderRefForUpdate(ctx context.Context, tx *sql.Tx, ref string, types []string) (*db.PaymentRecord, error)
	UpdateStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error
	ListByRental(ctx context.Context, rentalID int) ([]db.PaymentRecord, error)
}

// ProviderClient is the opaque payment provider boundary. Implemented by
// StripeService.
type ProviderClient interface {
	CreateCheckoutSession(amount int64, currency, description, customerEmail string) (url, sessionID string, err error)
	RefundBySession(sessionID string) (refundID string, err error)
	SessionPaid(sessionID string) (bool, error)
	SessionIDByPaymentIntent(paymentIntentID string) (string, error)
}

// PaymentService reconciles provider outcomes with payment records. Requests
// never block on provider completion: a record starts pending and stays
// pending until an explicit callback (or the verify fallback) settles it.
type PaymentService struct {
	DB       *sql.DB
	Payments PaymentStore
	Provider ProviderClient
	Currency string
}

func NewPaymentService(database *sql.DB, payments PaymentStore, provider ProviderClient, currency string) *PaymentService {
	if currency == "" {
		currency = "vnd"
	}
	return &PaymentService{DB: database, Payments: payments, Provider: provider, Currency: currency}
}

func (s *PaymentService) request(ctx context.Context, tx *sql.Tx, rental *db.Rental, amount int64, paymentType, description string) (*db.PaymentRecord, error) {
	url, sessionID, err := s.Provider.CreateCheckoutSession(amount, s.Currency, description, rental.RenterEmail)
	if err != nil {
		return nil, fmt.Errorf("error opening checkout session for rental %s: %w", rental.Code, err)
	}
	rec := &db.PaymentRecord{
		RentalID:    rental.ID,
		Amount:      amount,
		Method:      "online",
		Type:        paymentType,
		Status:      db.PaymentPending,
		ProviderRef: sessionID,
		PaymentURL:  url,
	}
	if err := s.Payments.Insert(ctx, tx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// RequestDeposit opens the deposit charge for a freshly reserved rental.
// Inserted with the caller's tx so the reservation and its deposit record
// commit or roll back together.
func (s *PaymentService) RequestDeposit(ctx context.Context, tx *sql.Tx, rental *db.Rental) (*db.PaymentRecord, error) {
	return s.request(ctx, tx, rental, rental.Deposit, db.PaymentDeposit,
		fmt.Sprintf("EV rental deposit %s", rental.Code))
}

// RequestFee opens the final fee charge computed at return time.
func (s *PaymentService) RequestFee(ctx context.Context, tx *sql.Tx, rental *db.Rental, amount int64) (*db.PaymentRecord, error) {
	return s.request(ctx, tx, rental, amount, db.PaymentFee,
		fmt.Sprintf("EV rental fee %s", rental.Code))
}

// RequestRefund sends the completed deposit back to the renter. The record
// keeps the deposit's session reference so the provider's refund event can
// find it; it stays pending until charge.refunded arrives.
func (s *PaymentService) RequestRefund(ctx context.Context, tx *sql.Tx, rental *db.Rental, deposit *db.PaymentRecord) (*db.PaymentRecord, error) {
	if _, err := s.Provider.RefundBySession(deposit.ProviderRef); err != nil {
		return nil, fmt.Errorf("error refunding deposit for rental %s: %w", rental.Code, err)
	}
	rec := &db.PaymentRecord{
		RentalID:    rental.ID,
		Amount:      deposit.Amount,
		Method:      "online",
		Type:        db.PaymentRefund,
		Status:      db.PaymentPending,
		ProviderRef: deposit.ProviderRef,
	}
	if err := s.Payments.Insert(ctx, tx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// resolve settles the record matching a provider reference. Idempotent: a
// record already settled keeps its status, so duplicate webhook deliveries
// and verify polls are harmless.
func (s *PaymentService) resolve(ctx context.Context, ref string, types []string, status string) (rec *db.PaymentRecord, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rec, err = s.Payments.GetByProviderRefForUpdate(ctx, tx, ref, types)
	if err != nil {
		return nil, err
	}
	if rec.Status != db.PaymentPending {
		log.Printf("payment %d already settled as %s, ignoring %s callback", rec.ID, rec.Status, status)
		return rec, tx.Commit()
	}
	if err = s.Payments.UpdateStatus(ctx, tx, rec.ID, status); err != nil {
		return nil, err
	}
	rec.Status = status
	return rec, tx.Commit()
}

// ResolveCheckout applies a checkout outcome (deposit or fee) reported by the
// provider, by session reference.
func (s *PaymentService) ResolveCheckout(ctx context.Context, sessionID, status string) (*db.PaymentRecord, error) {
	return s.resolve(ctx, sessionID, []string{db.PaymentDeposit, db.PaymentFee}, status)
}

// ResolveRefundByPaymentIntent marks the refund record completed when the
// provider confirms the charge was refunded. Refund events carry only the
// payment intent, so the session is looked up first.
func (s *PaymentService) ResolveRefundByPaymentIntent(ctx context.Context, paymentIntentID string) (*db.PaymentRecord, error) {
	sessionID, err := s.Provider.SessionIDByPaymentIntent(paymentIntentID)
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, sessionID, []string{db.PaymentRefund}, db.PaymentCompleted)
}

// Verify is the pull fallback: poll the provider for a pending deposit or fee
// and settle the record if the session was paid. Reports whether the record
// changed so the caller can feed the result into the state machine.
func (s *PaymentService) Verify(ctx context.Context, paymentID int64) (*db.PaymentRecord, bool, error) {
	rec, err := s.Payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}
	if rec.Status != db.PaymentPending || rec.Type == db.PaymentRefund {
		return rec, false, nil
	}
	paid, err := s.Provider.SessionPaid(rec.ProviderRef)
	if err != nil {
		return nil, false, err
	}
	if !paid {
		return rec, false, nil
	}
	rec, err = s.resolve(ctx, rec.ProviderRef, []string{rec.Type}, db.PaymentCompleted)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Reads used by the state machine and the staff console.

func (s *PaymentService) GetByID(ctx context.Context, id int64) (*db.PaymentRecord, error) {
	return s.Payments.GetByID(ctx, id)
}

func (s *PaymentService) DepositFor(ctx context.Context, rentalID int) (*db.PaymentRecord, error) {
	return s.Payments.GetDeposit(ctx, rentalID)
}

func (s *PaymentService) RefundFor(ctx context.Context, rentalID int) (*db.PaymentRecord, error) {
	return s.Payments.GetRefund(ctx, rentalID)
}

func (s *PaymentService) ListByRental(ctx context.Context, rentalID int) ([]db.PaymentRecord, error) {
	return s.Payments.ListByRental(ctx, rentalID)
}
