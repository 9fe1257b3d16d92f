package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleHealthz(t *testing.T) {
	h := NewHealthHandler("1.2.3", zap.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
}

func TestHandleReady_AllChecksPass(t *testing.T) {
	h := NewHealthHandler("dev", zap.NewNop())
	h.RegisterCheck(HealthCheckFunc{CheckName: "redis", Fn: func(context.Context) error { return nil }})
	h.RegisterCheck(HealthCheckFunc{CheckName: "archive", Fn: func(context.Context) error { return nil }})

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	require.Len(t, status.Checks, 2)
	assert.Equal(t, "pass", status.Checks["redis"].Status)
	assert.NotEmpty(t, status.Checks["redis"].Latency)
}

func TestHandleReady_FailingCheckIsUnavailable(t *testing.T) {
	h := NewHealthHandler("dev", zap.NewNop())
	h.RegisterCheck(HealthCheckFunc{CheckName: "redis", Fn: func(context.Context) error { return nil }})
	h.RegisterCheck(HealthCheckFunc{CheckName: "archive", Fn: func(context.Context) error {
		return errors.New("connection refused")
	}})

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "fail", status.Checks["archive"].Status)
	assert.Contains(t, status.Checks["archive"].Message, "connection refused")
}
