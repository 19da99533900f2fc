package service

import (
	"context"
	"database/sql"

	"evrental/internal/db"
	apperrors "evrental/internal/errors"
)

// UnitStore is the persistence surface the ledger drives. Implemented by
// repository.UnitRepository.
type UnitStore interface {
	Create(ctx context.Context, u *db.BikeUnit) error
	GetByID(ctx context.Context, id int) (*db.BikeUnit, error)
	ListAvailableByStation(ctx context.Context, stationID int) ([]db.BikeUnit, error)
	Transition(ctx context.Context, tx *sql.Tx, id int, from []string, to string, battery *int) (bool, error)
	Exists(ctx context.Context, tx *sql.Tx, id int) (bool, error)
	Retire(ctx context.Context, id int) (bool, error)
	UpdateBattery(ctx context.Context, id, battery int) error
	ReturnFromMaintenance(ctx context.Context, id int) (bool, error)
}

// InventoryService is the authoritative availability ledger for physical
// units. Unit state changes happen only here, always through guarded updates
// inside the caller's transaction.
type InventoryService struct {
	Units UnitStore
}

func NewInventoryService(units UnitStore) *InventoryService {
	return &InventoryService{Units: units}
}

// TryReserve claims an available unit for a new rental. It fails with
// ErrUnitUnavailable when the unit exists but is not available; callers
// should offer another unit rather than retry.
func (s *InventoryService) TryReserve(ctx context.Context, tx *sql.Tx, unitID int) error {
	ok, err := s.Units.Transition(ctx, tx, unitID, []string{db.UnitAvailable}, db.UnitReserved, nil)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	exists, err := s.Units.Exists(ctx, tx, unitID)
	if err != nil {
		return err
	}
	if !exists {
		return apperrors.ErrNotFound
	}
	return apperrors.ErrUnitUnavailable
}

// MarkRented moves a reserved unit to rented at handover.
func (s *InventoryService) MarkRented(ctx context.Context, tx *sql.Tx, unitID int) error {
	ok, err := s.Units.Transition(ctx, tx, unitID, []string{db.UnitReserved}, db.UnitRented, nil)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrInvalidTransition
	}
	return nil
}

// Release puts a reserved or rented unit back into circulation. outcome is
// db.UnitAvailable or db.UnitMaintenance; battery, when non-nil, records the
// level measured at return.
func (s *InventoryService) Release(ctx context.Context, tx *sql.Tx, unitID int, outcome string, battery *int) error {
	ok, err := s.Units.Transition(ctx, tx, unitID, []string{db.UnitReserved, db.UnitRented}, outcome, battery)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrInvalidTransition
	}
	return nil
}

// Provisioning and fleet upkeep, used by the staff console.

func (s *InventoryService) ProvisionUnit(ctx context.Context, u *db.BikeUnit) error {
	u.State = db.UnitAvailable
	return s.Units.Create(ctx, u)
}

func (s *InventoryService) GetUnit(ctx context.Context, id int) (*db.BikeUnit, error) {
	return s.Units.GetByID(ctx, id)
}

func (s *InventoryService) AvailableUnits(ctx context.Context, stationID int) ([]db.BikeUnit, error) {
	return s.Units.ListAvailableByStation(ctx, stationID)
}

// RetireUnit soft-retires an idle unit. Units attached to a live rental
// cannot be retired.
func (s *InventoryService) RetireUnit(ctx context.Context, id int) error {
	ok, err := s.Units.Retire(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		if _, err := s.Units.GetByID(ctx, id); err != nil {
			return err
		}
		return apperrors.ErrInvalidTransition
	}
	return nil
}

func (s *InventoryService) SetBattery(ctx context.Context, id, battery int) error {
	return s.Units.UpdateBattery(ctx, id, battery)
}

// FinishMaintenance returns a serviced unit to the available pool.
func (s *InventoryService) FinishMaintenance(ctx context.Context, id int) error {
	ok, err := s.Units.ReturnFromMaintenance(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrInvalidTransition
	}
	return nil
}
