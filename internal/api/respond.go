package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	apperrors "evrental/internal/errors"
)

var validate = validator.New()

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError maps domain errors to their HTTP status and a stable code the
// frontend can branch on.
func writeError(w http.ResponseWriter, err error) {
	status := apperrors.Status(err)
	code := apperrors.Code(err)
	if code == "" {
		code = "INTERNAL"
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}

// decodeAndValidate decodes a JSON body into dst and runs its validation
// tags, writing the 400 response itself on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body", "code": "BAD_REQUEST"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error(), "code": "VALIDATION_FAILED"})
		return false
	}
	return true
}
