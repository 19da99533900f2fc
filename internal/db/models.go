package db

import "time"

// Unit states. A unit's state is mutated only through the inventory ledger.
const (
	UnitAvailable   = "available"
	UnitReserved    = "reserved"
	UnitRented      = "rented"
	UnitMaintenance = "maintenance"
)

// Rental states. Reserved and ongoing are live; completed and cancelled are terminal.
const (
	RentalReserved  = "reserved"
	RentalOnGoing   = "ongoing"
	RentalCompleted = "completed"
	RentalCancelled = "cancelled"
)

// Payment record types and statuses.
const (
	PaymentDeposit = "deposit"
	PaymentFee     = "fee"
	PaymentRefund  = "refund"

	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// LowBatteryThreshold is the battery percentage below which a returned unit
// goes to maintenance instead of back into the available pool.
const LowBatteryThreshold = 10

// BikeUnit is one physical rentable vehicle, distinct from the bike model
// catalog entry. Units are soft-retired, never deleted, so historical rentals
// keep a valid reference.
type BikeUnit struct {
	ID           int
	BikeModelID  int
	StationID    int
	LicensePlate string
	BatteryLevel int
	State        string
	RetiredAt    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Rental struct {
	ID                 int
	Code               string
	UnitID             int
	RenterID           int
	StationID          int
	AssignedStaffID    *int
	RenterName         string
	RenterEmail        string
	RenterPhone        string
	InitialBattery     *int
	FinalBattery       *int
	InitBikeCondition  *string
	FinalBikeCondition *string
	Note               *string
	ReservedAt         time.Time
	StartedAt          *time.Time
	ReturnedAt         *time.Time
	CancelReason       *string
	Deposit            int64
	Fee                *int64
	State              string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Terminal reports whether the rental can never transition again.
func (r *Rental) Terminal() bool {
	return r.State == RentalCompleted || r.State == RentalCancelled
}

// CanTransition reports whether the state machine allows moving this rental
// to the given state. The graph is one-directional: reserved -> ongoing or
// cancelled, ongoing -> completed, nothing leaves a terminal state.
func (r *Rental) CanTransition(to string) bool {
	if r.Terminal() {
		return false
	}
	switch r.State {
	case RentalReserved:
		return to == RentalOnGoing || to == RentalCancelled
	case RentalOnGoing:
		return to == RentalCompleted
	default:
		return false
	}
}

// ReleaseOutcome derives the unit state a finished rental releases its unit
// into. Battery below the usability threshold or reported damage forces
// maintenance.
func ReleaseOutcome(finalBattery int, damaged bool) string {
	if damaged || finalBattery < LowBatteryThreshold {
		return UnitMaintenance
	}
	return UnitAvailable
}

type PaymentRecord struct {
	ID          int64
	RentalID    int
	Amount      int64
	Method      string
	Type        string
	Status      string
	ProviderRef string
	PaymentURL  string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StationStaff is a staff console account. Password hashes only, bcrypt.
type StationStaff struct {
	ID           int
	Name         string
	Email        string
	PasswordHash string
	StationID    int
}
