package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	contractdomain "github.com/casaflow/casaflow/internal/contract/domain"
	obligationdomain "github.com/casaflow/casaflow/internal/obligation/domain"
	paymentdomain "github.com/casaflow/casaflow/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   string
	}{
		{"invalid terms", contractdomain.ErrInvalidTerms, http.StatusBadRequest, "validation_error"},
		{"not active", contractdomain.ErrNotActive, http.StatusBadRequest, "validation_error"},
		{"invalid amount", paymentdomain.ErrInvalidAmount, http.StatusBadRequest, "validation_error"},
		{"not client reported", paymentdomain.ErrNotClientReported, http.StatusBadRequest, "validation_error"},
		{"schedule mismatch", obligationdomain.ErrScheduleMismatch, http.StatusBadRequest, "validation_error"},
		{"already scheduled", obligationdomain.ErrAlreadyScheduled, http.StatusConflict, "conflict"},
		{"concurrent modification", obligationdomain.ErrConcurrentModification, http.StatusConflict, "conflict"},
		{"already paid", paymentdomain.ErrAlreadyPaid, http.StatusConflict, "conflict"},
		{"unknown contract", contractdomain.ErrUnknownContract, http.StatusNotFound, "not_found"},
		{"unknown obligation", obligationdomain.ErrUnknownObligation, http.StatusNotFound, "not_found"},
		{"record not found", gorm.ErrRecordNotFound, http.StatusNotFound, "not_found"},
		{"anything else", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, payload := mapError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantType, payload.Type)
		})
	}
}

func TestMapErrorValidationDetails(t *testing.T) {
	status, payload := mapError(newValidationError("amount", "invalid_amount", "invalid amount"))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", payload.Type)
	if assert.Len(t, payload.Errors, 1) {
		assert.Equal(t, "amount", payload.Errors[0].Field)
		assert.Equal(t, "invalid_amount", payload.Errors[0].Code)
	}
}

func TestErrorHandlingMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/boom", func(c *gin.Context) {
		AbortWithError(c, paymentdomain.ErrAlreadyPaid)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"conflict"`)
}

func TestParseOptionalTime(t *testing.T) {
	got, err := parseOptionalTime("", false)
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseOptionalTime("2025-06-15", false)
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, 2025, got.Year())
		assert.Equal(t, 0, got.Hour())
	}

	got, err = parseOptionalTime("2025-06-15", true)
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, 23, got.Hour())
	}

	_, err = parseOptionalTime("not-a-date", false)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestParseOptionalSnowflakeID(t *testing.T) {
	got, err := parseOptionalSnowflakeID("")
	assert.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseOptionalSnowflakeID("123456789")
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, "123456789", got.String())
	}

	_, err = parseOptionalSnowflakeID("abc")
	assert.ErrorIs(t, err, ErrInvalidRequest)
}
