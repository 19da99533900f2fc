package entities

// RentalEmailData feeds the notification templates sent to renters when a
// rental changes status.
type RentalEmailData struct {
	RenterName string
	RentalCode string
	StationID  int
	Status     string
	Deposit    int64
}
