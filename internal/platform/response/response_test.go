package response

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venuelane/service-reservation/internal/domain"
)

func perform(t *testing.T, err error) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	Error(c, err)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w.Code, body
}

func TestError_Mapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKey  string
	}{
		{"validation", domain.NewValidationError("bad input"), http.StatusBadRequest, "validation_failed"},
		{"not found", domain.NewNotFoundError("booking", "x"), http.StatusNotFound, "not_found"},
		{"illegal transition", domain.NewIllegalTransitionError("pending", "finished", []string{"cancelled"}), http.StatusUnprocessableEntity, "illegal_transition"},
		{"overlap", domain.NewOverlapError([]domain.OverlapConflict{{Reference: "RV-AAAAAA"}}), http.StatusConflict, "booking_overlap"},
		{"token expired", domain.NewTokenExpiredError("x"), http.StatusGone, "token_expired"},
		{"lock conflict", domain.NewConflictError("modified"), http.StatusConflict, "lock_conflict"},
		{"forbidden", domain.NewForbiddenError("nope"), http.StatusForbidden, "forbidden"},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := perform(t, tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantKey, body["code"])
		})
	}
}

func TestError_IllegalTransitionCarriesLegalTargets(t *testing.T) {
	_, body := perform(t, domain.NewIllegalTransitionError("pending", "finished", []string{"pending_deposit", "cancelled"}))
	assert.Equal(t, []interface{}{"pending_deposit", "cancelled"}, body["legal_targets"])
}

func TestError_OverlapCarriesConflicts(t *testing.T) {
	_, body := perform(t, domain.NewOverlapError([]domain.OverlapConflict{
		{BookingID: "id-1", Reference: "RV-AAAAAA", StartDate: "2025-06-01"},
	}))
	conflicts, ok := body["conflicts"].([]interface{})
	require.True(t, ok)
	require.Len(t, conflicts, 1)
	first := conflicts[0].(map[string]interface{})
	assert.Equal(t, "RV-AAAAAA", first["reference"])
}
