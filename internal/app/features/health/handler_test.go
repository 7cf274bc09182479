package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/classhub/internal/app/features/health"
	"go.uber.org/zap"
)

func TestServe(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		checks     map[string]health.Check
		wantStatus int
		wantRedis  string
	}{
		{"all connected", map[string]health.Check{"database": ok, "redis": ok}, http.StatusOK, "connected"},
		{"redis down", map[string]health.Check{"database": ok, "redis": down}, http.StatusServiceUnavailable, "disconnected"},
		{"database only", map[string]health.Check{"database": ok}, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &health.Handler{Checks: tt.checks, Log: zap.NewNop()}
			rec := httptest.NewRecorder()
			health.Routes(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type: got %q", ct)
			}
			var resp struct {
				Status     string            `json:"status"`
				Components map[string]string `json:"components"`
				Errors     map[string]string `json:"errors"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to parse response: %v", err)
			}
			if resp.Components["database"] != "connected" {
				t.Errorf("database: got %q", resp.Components["database"])
			}
			if resp.Components["redis"] != tt.wantRedis {
				t.Errorf("redis: got %q, want %q", resp.Components["redis"], tt.wantRedis)
			}
			if tt.wantStatus != http.StatusOK && resp.Errors["redis"] == "" {
				t.Error("expected the failing component's error")
			}
		})
	}
}
