package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"evrental/internal/db"
	"evrental/internal/entities"
	"evrental/internal/service"
)

type UnitHandler struct {
	Inventory *service.InventoryService
}

func NewUnitHandler(inventory *service.InventoryService) *UnitHandler {
	return &UnitHandler{Inventory: inventory}
}

// ListStationUnits lists the units currently available at a station for the
// renter-facing browse view.
func (h *UnitHandler) ListStationUnits(w http.ResponseWriter, r *http.Request) {
	stationID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || stationID <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid station id", "code": "BAD_REQUEST"})
		return
	}
	units, err := h.Inventory.AvailableUnits(r.Context(), stationID)
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]entities.UnitResponse, 0, len(units))
	for i := range units {
		out = append(out, entities.NewUnitResponse(&units[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateUnit provisions new stock at a station.
func (h *UnitHandler) CreateUnit(w http.ResponseWriter, r *http.Request) {
	var req entities.CreateUnitRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	unit := &db.BikeUnit{
		BikeModelID:  req.BikeModelID,
		StationID:    req.StationID,
		LicensePlate: req.LicensePlate,
		BatteryLevel: req.BatteryLevel,
	}
	if err := h.Inventory.ProvisionUnit(r.Context(), unit); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entities.NewUnitResponse(unit))
}

func (h *UnitHandler) GetUnit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit id", "code": "BAD_REQUEST"})
		return
	}
	unit, err := h.Inventory.GetUnit(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entities.NewUnitResponse(unit))
}

// RetireUnit soft-retires a unit that is no longer rentable. Historical
// rentals keep pointing at it.
func (h *UnitHandler) RetireUnit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit id", "code": "BAD_REQUEST"})
		return
	}
	if err := h.Inventory.RetireUnit(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Unit retired"})
}

// UpdateBattery records a battery level measured outside a rental, e.g.
// after charging at the station.
func (h *UnitHandler) UpdateBattery(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit id", "code": "BAD_REQUEST"})
		return
	}
	var req entities.UpdateBatteryRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if err := h.Inventory.SetBattery(r.Context(), id, req.BatteryLevel); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Battery level updated"})
}

// FinishMaintenance returns a serviced unit to the available pool.
func (h *UnitHandler) FinishMaintenance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid unit id", "code": "BAD_REQUEST"})
		return
	}
	if err := h.Inventory.FinishMaintenance(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Unit back in service"})
}
