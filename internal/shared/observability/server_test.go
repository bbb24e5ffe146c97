package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticHealth HealthStatus

func (h staticHealth) Check(context.Context) HealthStatus { return HealthStatus(h) }

func TestServer_Health(t *testing.T) {
	tests := []struct {
		name   string
		status string
		code   int
	}{
		{"up", "up", http.StatusOK},
		{"degraded", "degraded", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(":0", staticHealth{Status: tt.status, Timestamp: time.Now(), Components: map[string]string{"registry": "ok"}})
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.code, rec.Code)
			var body HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body.Status)
			assert.Equal(t, "ok", body.Components["registry"])
		})
	}
}

func TestServer_Metrics(t *testing.T) {
	FilesScannedTotal.WithLabelValues("ok").Inc()

	srv := NewServer(":0", staticHealth{Status: "up"})
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "rangefinder_files_scanned_total")
}

func TestSetupTracing_Disabled(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), "")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))

	_, span := Tracer.Start(context.Background(), "noop")
	span.End()
}
