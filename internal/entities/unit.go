package entities

import (
	"time"

	"evrental/internal/db"
)

type CreateUnitRequest struct {
	BikeModelID  int    `json:"bike_model_id" validate:"required,gt=0"`
	StationID    int    `json:"station_id" validate:"required,gt=0"`
	LicensePlate string `json:"license_plate" validate:"required,max=20"`
	BatteryLevel int    `json:"battery_level" validate:"gte=0,lte=100"`
}

type UpdateBatteryRequest struct {
	BatteryLevel int `json:"battery_level" validate:"gte=0,lte=100"`
}

type UnitResponse struct {
	ID           int        `json:"unit_id"`
	BikeModelID  int        `json:"bike_model_id"`
	StationID    int        `json:"station_id"`
	LicensePlate string     `json:"license_plate"`
	BatteryLevel int        `json:"battery_level"`
	State        string     `json:"state"`
	RetiredAt    *time.Time `json:"retired_at,omitempty"`
}

func NewUnitResponse(u *db.BikeUnit) UnitResponse {
	return UnitResponse{
		ID:           u.ID,
		BikeModelID:  u.BikeModelID,
		StationID:    u.StationID,
		LicensePlate: u.LicensePlate,
		BatteryLevel: u.BatteryLevel,
		State:        u.State,
		RetiredAt:    u.RetiredAt,
	}
}
