package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	assert.Equal(t, http.StatusConflict, Status(ErrUnitUnavailable))
	assert.Equal(t, http.StatusConflict, Status(ErrInvalidTransition))
	assert.Equal(t, http.StatusConflict, Status(ErrPaymentNotConfirmed))
	assert.Equal(t, http.StatusNotFound, Status(ErrNotFound))
	assert.Equal(t, http.StatusInternalServerError, Status(fmt.Errorf("disk on fire")))
}

func TestStatusWrapped(t *testing.T) {
	wrapped := fmt.Errorf("cancelling rental 42: %w", ErrInvalidTransition)
	assert.Equal(t, http.StatusConflict, Status(wrapped))
	assert.Equal(t, "INVALID_TRANSITION", Code(wrapped))
}

func TestCode(t *testing.T) {
	assert.Equal(t, "UNIT_UNAVAILABLE", Code(ErrUnitUnavailable))
	assert.Equal(t, "", Code(fmt.Errorf("disk on fire")))
}
