package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"evrental/internal/auth"
	"evrental/internal/db"
	"evrental/internal/entities"
	"evrental/internal/service"
)

type RentalHandler struct {
	Rentals  *service.RentalService
	Payments *service.PaymentService
}

func NewRentalHandler(rentals *service.RentalService, payments *service.PaymentService) *RentalHandler {
	return &RentalHandler{Rentals: rentals, Payments: payments}
}

// CreateRental books a unit and returns the checkout URL for the deposit.
func (h *RentalHandler) CreateRental(w http.ResponseWriter, r *http.Request) {
	var req entities.CreateRentalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	created, err := h.Rentals.Create(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// GetRental returns a rental and its payment records, addressed by the code
// the renter received at booking.
func (h *RentalHandler) GetRental(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	rental, err := h.Rentals.GetByCode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	records, err := h.Payments.ListByRental(r.Context(), rental.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	payments := make([]entities.PaymentResponse, 0, len(records))
	for i := range records {
		payments = append(payments, entities.NewPaymentResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rental":   entities.NewRentalResponse(rental),
		"payments": payments,
	})
}

// CancelRental is the renter-initiated cancellation, valid while reserved.
// The body is optional; an empty DELETE cancels with the default reason.
func (h *RentalHandler) CancelRental(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	var req entities.CancelRentalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body", "code": "BAD_REQUEST"})
		return
	}
	rental, err := h.Rentals.GetByCode(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	reason := req.Reason
	if reason == "" {
		reason = "cancelled by renter"
	}
	cancelled, err := h.Rentals.Cancel(r.Context(), rental.ID, reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewRentalResponse(cancelled))
}

// ListRentals is the staff console listing with renter/station/state filters.
// Without an explicit station_id the listing is scoped to the authenticated
// staff member's own station; station_id=0 lists every station.
func (h *RentalHandler) ListRentals(w http.ResponseWriter, r *http.Request) {
	filter := entities.RentalFilter{
		State: r.URL.Query().Get("state"),
	}
	if v := r.URL.Query().Get("renter_id"); v != "" {
		filter.RenterID, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("station_id"); v != "" {
		filter.StationID, _ = strconv.Atoi(v)
	} else {
		filter.StationID = auth.StationID(r.Context())
	}
	if v := r.URL.Query().Get("staff_id"); v != "" {
		filter.StaffID, _ = strconv.Atoi(v)
	}

	rentals, err := h.Rentals.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]entities.RentalResponse, 0, len(rentals))
	for i := range rentals {
		out = append(out, entities.NewRentalResponse(&rentals[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func rentalID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	return id, err == nil && id > 0
}

// staffID resolves the acting staff member: the JWT claim when authenticated,
// otherwise the body fallback.
func staffID(r *http.Request, bodyID int) int {
	if id := auth.StaffID(r.Context()); id > 0 {
		return id
	}
	return bodyID
}

// GetRentalByID returns a single rental for the staff console.
func (h *RentalHandler) GetRentalByID(w http.ResponseWriter, r *http.Request) {
	id, ok := rentalID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid rental id", "code": "BAD_REQUEST"})
		return
	}
	rental, err := h.Rentals.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewRentalResponse(rental))
}

// HandOver confirms the rental start: staff hands the bike to the renter.
func (h *RentalHandler) HandOver(w http.ResponseWriter, r *http.Request) {
	id, ok := rentalID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid rental id", "code": "BAD_REQUEST"})
		return
	}
	var req entities.ConfirmStartRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	staff := staffID(r, req.StaffID)
	if staff <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "staff identity required", "code": "BAD_REQUEST"})
		return
	}
	rental, err := h.Rentals.ConfirmStart(r.Context(), id, staff, req.InitialBattery, req.InitBikeCondition, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewRentalResponse(rental))
}

// Return completes the rental: staff takes the bike back, records its final
// state and the fee owed.
func (h *RentalHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := rentalID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid rental id", "code": "BAD_REQUEST"})
		return
	}
	var req entities.CompleteRentalRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	staff := staffID(r, req.StaffID)
	if staff <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "staff identity required", "code": "BAD_REQUEST"})
		return
	}
	rental, err := h.Rentals.Complete(r.Context(), id, staff, req.FinalBattery, req.FinalBikeCondition, req.Damaged, req.Fee, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	resp := map[string]any{
		"rental":           entities.NewRentalResponse(rental),
		"unit_maintenance": db.ReleaseOutcome(req.FinalBattery, req.Damaged) == db.UnitMaintenance,
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListRentalPayments shows a rental's payment trail to staff.
func (h *RentalHandler) ListRentalPayments(w http.ResponseWriter, r *http.Request) {
	id, ok := rentalID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid rental id", "code": "BAD_REQUEST"})
		return
	}
	records, err := h.Payments.ListByRental(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]entities.PaymentResponse, 0, len(records))
	for i := range records {
		out = append(out, entities.NewPaymentResponse(&records[i]))
	}
	writeJSON(w, http.StatusOK, out)
}
