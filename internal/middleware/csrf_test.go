package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestCSRFMiddleware_Verification(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		cookieValue string
		headerValue string
		wantCalled  bool
		wantStatus  int
	}{
		{"GET without token", http.MethodGet, "", "", true, http.StatusOK},
		{"HEAD without token", http.MethodHead, "", "", true, http.StatusOK},
		{"OPTIONS without token", http.MethodOptions, "", "", true, http.StatusOK},
		{"POST matching token", http.MethodPost, "tok-1", "tok-1", true, http.StatusOK},
		{"PUT matching token", http.MethodPut, "tok-1", "tok-1", true, http.StatusOK},
		{"PATCH matching token", http.MethodPatch, "tok-1", "tok-1", true, http.StatusOK},
		{"DELETE matching token", http.MethodDelete, "tok-1", "tok-1", true, http.StatusOK},
		{"POST without cookie", http.MethodPost, "", "tok-1", false, http.StatusForbidden},
		{"POST without header", http.MethodPost, "tok-1", "", false, http.StatusForbidden},
		{"POST mismatched token", http.MethodPost, "tok-1", "tok-2", false, http.StatusForbidden},
		{"DELETE without anything", http.MethodDelete, "", "", false, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/api/pipeline/send", nil)
			if tt.cookieValue != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookieValue})
			}
			if tt.headerValue != "" {
				req.Header.Set(csrfHeaderName, tt.headerValue)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if called != tt.wantCalled {
				t.Errorf("handler called = %v, want %v", called, tt.wantCalled)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestCSRFMiddleware_RejectionUsesUnifiedErrorFormat(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/pipeline/back", nil))

	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/json") {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Code != "CSRF_FAILED" {
		t.Errorf("code = %q, want CSRF_FAILED", body.Code)
	}
	if body.Category != "auth" {
		t.Errorf("category = %q, want auth", body.Category)
	}
}

func TestCSRFMiddleware_SafeMethodIssuesCookie(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{CookieSecure: true, CookieDomain: "example.com", MaxAge: 600})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/applications", nil))

	c := findCookie(w.Result(), csrfCookieName)
	if c == nil {
		t.Fatal("expected csrf cookie")
	}
	if c.Value == "" {
		t.Error("cookie value should not be empty")
	}
	if c.HttpOnly {
		t.Error("csrf cookie must be readable from scripts")
	}
	if !c.Secure {
		t.Error("Secure should follow config")
	}
	if c.Domain != "example.com" {
		t.Errorf("Domain = %q, want example.com", c.Domain)
	}
	if c.MaxAge != 600 {
		t.Errorf("MaxAge = %d, want 600", c.MaxAge)
	}
	if c.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", c.SameSite)
	}
	if strings.ContainsAny(c.Value, "+/=") {
		t.Errorf("token %q should be base64url without padding", c.Value)
	}
}

func TestCSRFMiddleware_ExistingCookieIsKept(t *testing.T) {
	handler := NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/api/applications", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if c := findCookie(w.Result(), csrfCookieName); c != nil {
		t.Errorf("cookie re-issued with %q", c.Value)
	}
}

func TestCSRFConfig_DefaultMaxAge(t *testing.T) {
	if got := (CSRFConfig{}).maxAge(); got != defaultCSRFMaxAge {
		t.Errorf("maxAge() = %d, want %d", got, defaultCSRFMaxAge)
	}
}

func TestCSRFTokenHandler(t *testing.T) {
	t.Run("issues new token", func(t *testing.T) {
		w := httptest.NewRecorder()
		NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if got := w.Header().Get("Cache-Control"); got != "no-store" {
			t.Errorf("Cache-Control = %q, want no-store", got)
		}
		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		c := findCookie(w.Result(), csrfCookieName)
		if c == nil {
			t.Fatal("expected csrf cookie")
		}
		if body["token"] == "" || body["token"] != c.Value {
			t.Errorf("token = %q, cookie = %q, want equal and non-empty", body["token"], c.Value)
		}
	})

	t.Run("returns existing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
		req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
		w := httptest.NewRecorder()
		NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)

		var body map[string]string
		json.NewDecoder(w.Body).Decode(&body)
		if body["token"] != "existing" {
			t.Errorf("token = %q, want existing", body["token"])
		}
		if c := findCookie(w.Result(), csrfCookieName); c != nil {
			t.Error("existing cookie should not be replaced")
		}
	})

	t.Run("tokens are unique", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 20; i++ {
			w := httptest.NewRecorder()
			NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))
			var body map[string]string
			json.NewDecoder(w.Body).Decode(&body)
			if seen[body["token"]] {
				t.Fatalf("duplicate token %q", body["token"])
			}
			seen[body["token"]] = true
		}
	})
}
