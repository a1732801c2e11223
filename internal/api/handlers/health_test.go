package handlers

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestGetHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	r := gin.New()
	r.GET("/healthy", NewHealthHandler(map[string]HealthCheck{"database": ok}).GetHealth)
	r.GET("/degraded", NewHealthHandler(map[string]HealthCheck{"database": ok, "redis": down}).GetHealth)

	w := do(r, http.MethodGet, "/healthy", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = do(r, http.MethodGet, "/degraded", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"connection refused"`)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}
