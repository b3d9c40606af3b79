package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCORSMiddleware(t *testing.T) {
	const origins = "http://localhost:3000, https://app.example.com/"

	tests := []struct {
		name        string
		method      string
		origin      string
		preflight   bool
		wantAllow   string
		wantStatus  int
		wantReached bool
	}{
		{"allowed origin", http.MethodGet, "http://localhost:3000", false, "http://localhost:3000", http.StatusOK, true},
		{"second origin with trailing slash in config", http.MethodPost, "https://app.example.com", false, "https://app.example.com", http.StatusOK, true},
		{"unknown origin", http.MethodGet, "https://evil.example.com", false, "", http.StatusOK, true},
		{"no origin", http.MethodGet, "", false, "", http.StatusOK, true},
		{"preflight", http.MethodOptions, "http://localhost:3000", true, "http://localhost:3000", http.StatusNoContent, false},
		{"preflight from unknown origin", http.MethodOptions, "https://evil.example.com", true, "", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached := false
			handler := NewCORSMiddleware(origins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				reached = true
			}))

			req := httptest.NewRequest(tt.method, "/api/pipeline", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPost)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if reached != tt.wantReached {
				t.Errorf("next reached = %v, want %v", reached, tt.wantReached)
			}
			if got := w.Header().Get("Vary"); got != "Origin" {
				t.Errorf("Vary = %q, want Origin", got)
			}
		})
	}
}

func TestCORSMiddleware_PreflightAllowsCSRFHeader(t *testing.T) {
	handler := NewCORSMiddleware("http://localhost:3000")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodOptions, "/api/pipeline/send", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(got, csrfHeaderName) {
		t.Errorf("Allow-Headers = %q, should contain %s", got, csrfHeaderName)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Allow-Credentials = %q, want true", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPatch) {
		t.Errorf("Allow-Methods = %q, should contain PATCH", got)
	}
}
