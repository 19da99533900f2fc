package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from string
		to   string
		want bool
	}{
		{"reserved to ongoing", RentalReserved, RentalOnGoing, true},
		{"reserved to cancelled", RentalReserved, RentalCancelled, true},
		{"reserved to completed", RentalReserved, RentalCompleted, false},
		{"ongoing to completed", RentalOnGoing, RentalCompleted, true},
		{"ongoing to cancelled", RentalOnGoing, RentalCancelled, false},
		{"ongoing to reserved", RentalOnGoing, RentalReserved, false},
		{"completed is terminal", RentalCompleted, RentalCancelled, false},
		{"cancelled is terminal", RentalCancelled, RentalOnGoing, false},
		{"cancelled to cancelled", RentalCancelled, RentalCancelled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Rental{State: tt.from}
			assert.Equal(t, tt.want, r.CanTransition(tt.to))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.False(t, (&Rental{State: RentalReserved}).Terminal())
	assert.False(t, (&Rental{State: RentalOnGoing}).Terminal())
	assert.True(t, (&Rental{State: RentalCompleted}).Terminal())
	assert.True(t, (&Rental{State: RentalCancelled}).Terminal())
}

func TestReleaseOutcome(t *testing.T) {
	tests := []struct {
		name    string
		battery int
		damaged bool
		want    string
	}{
		{"healthy battery", 80, false, UnitAvailable},
		{"at threshold", LowBatteryThreshold, false, UnitAvailable},
		{"below threshold", LowBatteryThreshold - 1, false, UnitMaintenance},
		{"empty battery", 0, false, UnitMaintenance},
		{"damaged overrides battery", 95, true, UnitMaintenance},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReleaseOutcome(tt.battery, tt.damaged))
		})
	}
}
