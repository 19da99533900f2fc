package entities

import (
	"time"

	"evrental/internal/db"
)

type CreateRentalRequest struct {
	UnitID      int    `json:"unit_id" validate:"required,gt=0"`
	RenterID    int    `json:"renter_id" validate:"required,gt=0"`
	StationID   int    `json:"station_id" validate:"required,gt=0"`
	RenterName  string `json:"renter_name" validate:"required"`
	RenterEmail string `json:"renter_email" validate:"required,email"`
	RenterPhone string `json:"renter_phone" validate:"omitempty,e164"`
	Deposit     int64  `json:"deposit" validate:"required,gt=0,lte=50000000"`
}

// ConfirmStartRequest is the staff handover payload (reserved -> ongoing).
// StaffID is a fallback for clients outside the JWT flow; the token's staff
// claim wins when present.
type ConfirmStartRequest struct {
	StaffID           int    `json:"staff_id" validate:"omitempty,gt=0"`
	InitialBattery    int    `json:"initial_battery" validate:"gte=0,lte=100"`
	InitBikeCondition string `json:"init_bike_condition" validate:"max=500"`
	Note              string `json:"note" validate:"max=1000"`
}

// CompleteRentalRequest is the staff return payload (ongoing -> completed).
type CompleteRentalRequest struct {
	StaffID            int    `json:"staff_id" validate:"omitempty,gt=0"`
	FinalBattery       int    `json:"final_battery" validate:"gte=0,lte=100"`
	FinalBikeCondition string `json:"final_bike_condition" validate:"required,max=500"`
	Damaged            bool   `json:"damaged"`
	Fee                int64  `json:"fee" validate:"gte=0,lte=50000000"`
	Note               string `json:"note" validate:"max=1000"`
}

type CancelRentalRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

// RentalFilter narrows staff rental listings.
type RentalFilter struct {
	RenterID  int
	StationID int
	StaffID   int
	State     string
}

type RentalResponse struct {
	ID                 int        `json:"rental_id"`
	Code               string     `json:"code"`
	UnitID             int        `json:"unit_id"`
	RenterID           int        `json:"renter_id"`
	StationID          int        `json:"station_id"`
	AssignedStaffID    *int       `json:"assigned_staff_id,omitempty"`
	RenterName         string     `json:"renter_name"`
	InitialBattery     *int       `json:"initial_battery,omitempty"`
	FinalBattery       *int       `json:"final_battery,omitempty"`
	InitBikeCondition  *string    `json:"init_bike_condition,omitempty"`
	FinalBikeCondition *string    `json:"final_bike_condition,omitempty"`
	ReservedAt         time.Time  `json:"reserved_at"`
	StartedAt          *time.Time `json:"started_at,omitempty"`
	ReturnedAt         *time.Time `json:"returned_at,omitempty"`
	CancelReason       *string    `json:"cancel_reason,omitempty"`
	Deposit            int64      `json:"deposit"`
	Fee                *int64     `json:"fee,omitempty"`
	State              string     `json:"state"`
}

func NewRentalResponse(r *db.Rental) RentalResponse {
	return RentalResponse{
		ID:                 r.ID,
		Code:               r.Code,
		UnitID:             r.UnitID,
		RenterID:           r.RenterID,
		StationID:          r.StationID,
		AssignedStaffID:    r.AssignedStaffID,
		RenterName:         r.RenterName,
		InitialBattery:     r.InitialBattery,
		FinalBattery:       r.FinalBattery,
		InitBikeCondition:  r.InitBikeCondition,
		FinalBikeCondition: r.FinalBikeCondition,
		ReservedAt:         r.ReservedAt,
		StartedAt:          r.StartedAt,
		ReturnedAt:         r.ReturnedAt,
		CancelReason:       r.CancelReason,
		Deposit:            r.Deposit,
		Fee:                r.Fee,
		State:              r.State,
	}
}

// RentalCreated is returned from booking: the new rental plus the deposit
// checkout the renter is redirected to.
type RentalCreated struct {
	Rental     RentalResponse `json:"rental"`
	PaymentID  int64          `json:"payment_id"`
	PaymentURL string         `json:"payment_url"`
}
