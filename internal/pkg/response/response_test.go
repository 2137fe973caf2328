package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yourusername/challengequest-api/internal/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(apperrors.KindNotFound))
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperrors.KindBusinessRule))
	assert.Equal(t, http.StatusBadRequest, StatusFor(apperrors.KindValidation))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(apperrors.KindUnauthorized))
	assert.Equal(t, http.StatusForbidden, StatusFor(apperrors.KindForbidden))
	assert.Equal(t, http.StatusConflict, StatusFor(apperrors.KindConflict))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(apperrors.KindInternal))
}

func TestError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantError  string
	}{
		{"типизированная ошибка", apperrors.ErrChallengeFull, http.StatusBadRequest, apperrors.CodeChallengeFull, "challenge is full"},
		{"обернутая типизированная", fmt.Errorf("join: %w", apperrors.ErrAlreadyJoined), http.StatusBadRequest, apperrors.CodeAlreadyJoined, "user has already joined this challenge"},
		{"общий sentinel", apperrors.ErrNotFound, http.StatusNotFound, apperrors.CodeNotFound, "record not found"},
		{"с причиной", apperrors.Wrap(apperrors.KindConflict, apperrors.CodeCategoryExists, "category exists", apperrors.ErrConflict), http.StatusConflict, apperrors.CodeCategoryExists, "category exists"},
		{"внутренняя", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			Error(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			var body Envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantError, body.Error)
			assert.True(t, c.IsAborted())
		})
	}
}
