package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_ServeHTTP(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name       string
		probes     map[string]Probe
		wantStatus int
		wantBody   string
	}{
		{name: "no probes", probes: nil, wantStatus: http.StatusOK, wantBody: `"status":"OK"`},
		{name: "all healthy", probes: map[string]Probe{"postgres": ok}, wantStatus: http.StatusOK, wantBody: `"postgres":"ok"`},
		{name: "one down", probes: map[string]Probe{"postgres": ok, "redis": down}, wantStatus: http.StatusServiceUnavailable, wantBody: `"redis":"connection refused"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(slog.New(slog.NewTextHandler(io.Discard, nil)), tt.probes)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.wantBody)
		})
	}
}
