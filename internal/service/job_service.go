package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"evrental/internal/db"
)

// StaleScanner finds reserved rentals whose deposit never settled.
// Implemented by repository.JobRepository.
type StaleScanner interface {
	StaleReservedRentalIDs(ctx context.Context, before time.Time) ([]int, error)
}

// Canceler is the slice of the state machine the sweep needs.
type Canceler interface {
	Cancel(ctx context.Context, rentalID int, reason string) (*db.Rental, error)
}

// JobService runs the periodic reservation sweep: bookings abandoned at
// checkout keep a unit reserved, so after HoldDuration they are cancelled
// through the state machine, which releases the unit and skips any refund
// (the deposit never completed).
type JobService struct {
	Scanner      StaleScanner
	Rentals      Canceler
	HoldDuration time.Duration
}

func NewJobService(scanner StaleScanner, rentals Canceler, holdDuration time.Duration) *JobService {
	if holdDuration <= 0 {
		holdDuration = 30 * time.Minute
	}
	return &JobService{Scanner: scanner, Rentals: rentals, HoldDuration: holdDuration}
}

// CancelExpiredReservations cancels every stale reserved rental. Cancel is
// idempotent, so overlapping sweep runs and webhook races are safe; failures
// are logged and the sweep moves on.
func (s *JobService) CancelExpiredReservations(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.HoldDuration)
	ids, err := s.Scanner.StaleReservedRentalIDs(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("cron job: failed to find stale reservations: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	log.Printf("Cron Job: cancelling %d expired reservations: %v", len(ids), ids)
	for _, id := range ids {
		if _, err := s.Rentals.Cancel(ctx, id, "reservation expired before deposit payment"); err != nil {
			log.Printf("Cron Job: failed to cancel rental %d: %v", id, err)
		}
	}
	return nil
}
