package models

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewResponse(t *testing.T) {
	before := time.Now().UnixMilli()
	response := NewResponse(http.StatusCreated, map[string]string{"key": "value"}, "Resource Created")
	after := time.Now().UnixMilli()

	assert.Equal(t, http.StatusCreated, response.Code)
	assert.Equal(t, map[string]string{"key": "value"}, response.Data)
	assert.Equal(t, "Resource Created", response.Text)
	assert.Equal(t, 2, response.Version)
	assert.GreaterOrEqual(t, response.CurrentTime, before)
	assert.LessOrEqual(t, response.CurrentTime, after)
}

func TestNewEntryResponse(t *testing.T) {
	response := NewEntryResponse("payload")

	assert.Equal(t, http.StatusOK, response.Code)
	assert.Equal(t, "OK", response.Text)
	data, ok := response.Data.(map[string]interface{})
	assert.True(t, ok, "Response data should be a map")
	assert.Equal(t, "payload", data["entry"])
}

func TestNewErrorResponse(t *testing.T) {
	response := NewErrorResponse(http.StatusServiceUnavailable, "display degraded")

	assert.Equal(t, http.StatusServiceUnavailable, response.Code)
	assert.Nil(t, response.Data)
	assert.Equal(t, "display degraded", response.Text)
}
