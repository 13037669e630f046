package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	applog "finanse/internal/log"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := applog.New(applog.Config{Format: "json", Output: &buf, Component: applog.ComponentHTTP})

	m := NewMiddleware(func(*http.Request) string { return "198.51.100.1" })
	var seen string
	h := applog.Middleware(logger)(m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		if r.URL.Path == "/boom" {
			w.WriteHeader(http.StatusInternalServerError)
		}
	})))

	tests := []struct {
		name     string
		path     string
		incoming string
		keep     bool
	}{
		{"generated id", "/api/report", "", false},
		{"client id kept", "/api/report", "abc-123", true},
		{"invalid client id replaced", "/api/report", "bad id with spaces", false},
		{"server error", "/boom", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.incoming != "" {
				r.Header.Set(HeaderRequestID, tt.incoming)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, r)

			got := rr.Header().Get(HeaderRequestID)
			if got == "" || got != seen {
				t.Fatalf("response id %q, handler saw %q", got, seen)
			}
			if tt.keep != (got == tt.incoming) {
				t.Errorf("id = %q, incoming %q, keep %v", got, tt.incoming, tt.keep)
			}
		})
	}

	metrics := m.GetMetrics()
	if metrics.TotalRequests != 4 || metrics.ServerErrors != 1 {
		t.Fatalf("metrics = %+v", metrics)
	}
	out := buf.String()
	if !strings.Contains(out, `"msg":"HTTP request completed"`) || !strings.Contains(out, `"client_ip":"198.51.100.1"`) {
		t.Fatalf("log output:\n%s", out)
	}
}
