package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAPICheck(t *testing.T) {
	status := http.StatusOK
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer backend.Close()

	c := NewChecker(nil, 0)
	c.RegisterAPICheck("backend", backend.URL+"/health", nil)

	c.RunChecks(context.Background())
	assert.Equal(t, StatusUp, c.GetStatus()["api-backend"].Status)
	assert.True(t, c.IsSystemHealthy())

	status = http.StatusInternalServerError
	c.RunChecks(context.Background())
	assert.Equal(t, StatusDegraded, c.GetStatus()["api-backend"].Status)
	assert.True(t, c.IsSystemHealthy())

	backend.Close()
	c.RunChecks(context.Background())
	assert.Equal(t, StatusDown, c.GetStatus()["api-backend"].Status)
	assert.False(t, c.IsSystemHealthy())
}

func TestNonCriticalFailureKeepsSystemHealthy(t *testing.T) {
	c := NewChecker(nil, 0)
	c.RegisterPingCheck("redis", false, func(context.Context) error { return errors.New("refused") })

	var seen []bool
	c.OnChange(func(healthy bool) { seen = append(seen, healthy) })
	c.RunChecks(context.Background())

	assert.Equal(t, StatusDown, c.GetStatus()["redis"].Status)
	assert.True(t, c.IsSystemHealthy())
	assert.Equal(t, []bool{true}, seen)
}

func TestHTTPHandler(t *testing.T) {
	c := NewChecker(nil, 0)
	c.RegisterPingCheck("sessions", true, func(context.Context) error { return errors.New("down") })
	c.RunChecks(context.Background())

	w := httptest.NewRecorder()
	c.HTTPHandler()(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status     string                `json:"status"`
		Components map[string]*Component `json:"components"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "unavailable", body.Status)
	assert.Equal(t, "down", body.Components["sessions"].Error)
}
