package health

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	up := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("connection refused") })

	tests := []struct {
		name       string
		checks     map[string]Pinger
		wantCode   int
		wantStatus string
		wantDeps   map[string]any
	}{
		{
			name:       "no checks",
			checks:     nil,
			wantCode:   http.StatusOK,
			wantStatus: "OK",
			wantDeps:   map[string]any{},
		},
		{
			name:       "all healthy",
			checks:     map[string]Pinger{"postgres": up, "redis": up},
			wantCode:   http.StatusOK,
			wantStatus: "OK",
			wantDeps:   map[string]any{"postgres": "ok", "redis": "ok"},
		},
		{
			name:       "redis down",
			checks:     map[string]Pinger{"postgres": up, "redis": down},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "Error",
			wantDeps:   map[string]any{"postgres": "ok", "redis": "down"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/health", nil)

			New(slog.New(slog.NewTextHandler(io.Discard, nil)), tt.checks).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			var got map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, tt.wantStatus, got["status"])
			if len(tt.wantDeps) > 0 {
				assert.Equal(t, tt.wantDeps, got["data"])
			}
		})
	}
}
