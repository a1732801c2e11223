package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSendValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	SendValidationError(c, "Invalid request", "seasons must be positive")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "seasons must be positive", resp.Error.Details)
}

func TestSendSuccessWithMeta(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	SendSuccessWithMeta(c, []string{"a"}, &Meta{Page: 1, PerPage: 20, Total: 1, TotalPages: 1})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":["a"],"meta":{"page":1,"per_page":20,"total":1,"total_pages":1}}`, w.Body.String())
}

func TestAppError(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: run missing", NewAppError(ErrCodeNotFound, "run missing").Error())
	assert.Equal(t, "RATE_LIMITED: slow down (retry later)", NewAppError(ErrCodeRateLimited, "slow down", "retry later").Error())
}
