package entities

import (
	"time"

	"evrental/internal/db"
)

type PaymentResponse struct {
	ID        int64     `json:"payment_id"`
	RentalID  int       `json:"rental_id"`
	Amount    int64     `json:"amount"`
	Method    string    `json:"method"`
	Type      string    `json:"type"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewPaymentResponse(p *db.PaymentRecord) PaymentResponse {
	return PaymentResponse{
		ID:        p.ID,
		RentalID:  p.RentalID,
		Amount:    p.Amount,
		Method:    p.Method,
		Type:      p.Type,
		Status:    p.Status,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type VerifyPaymentResponse struct {
	Payment PaymentResponse `json:"payment"`
	Settled bool            `json:"settled"`
}
