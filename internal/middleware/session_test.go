package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/reapply/internal/model"
)

// --- モック定義 ---

type mockSessionRepository struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsSession(t *testing.T) {
	tokenExpiry := time.Now().Add(30 * time.Minute)
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session-id" {
				return &model.Session{
					ID:                     "valid-session-id",
					UserID:                 "user-123",
					ExpiresAt:              time.Now().Add(1 * time.Hour),
					ProviderToken:          "ya29.token",
					ProviderTokenExpiresAt: &tokenExpiry,
				}, nil
			}
			return nil, nil
		},
	}

	mw := NewSessionMiddleware(repo)

	var capturedUserID string
	var captured *model.Session
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		captured, err = SessionFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
	if captured == nil || captured.ProviderCredential() == nil {
		t.Fatal("session with provider token should be injected")
	}
	if captured.ProviderCredential().AccessToken != "ya29.token" {
		t.Errorf("AccessToken = %q", captured.ProviderCredential().AccessToken)
	}
}

func TestSessionMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		cookie *http.Cookie
		find   func(ctx context.Context, id string) (*model.Session, error)
	}{
		{name: "no cookie"},
		{name: "empty cookie", cookie: &http.Cookie{Name: SessionCookieName, Value: ""}},
		{
			// 期限切れはリポジトリがnilを返す
			name:   "expired session",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "expired"},
			find:   func(ctx context.Context, id string) (*model.Session, error) { return nil, nil },
		},
		{
			name:   "repository error",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "some-session"},
			find:   func(ctx context.Context, id string) (*model.Session, error) { return nil, context.DeadlineExceeded },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewSessionMiddleware(&mockSessionRepository{findByIDFn: tt.find})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					t.Fatal("handler should not be called")
				}))

			req := httptest.NewRequest(http.MethodGet, "/api/pipeline", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	ctx := context.Background()
	_, err := UserIDFromContext(ctx)
	if err == nil {
		t.Error("expected error for missing user ID in context")
	}
	if _, err := SessionFromContext(ctx); err == nil {
		t.Error("expected error for missing session in context")
	}
}

func TestLookupSession(t *testing.T) {
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "s-1" {
				return &model.Session{ID: "s-1", UserID: "user-1"}, nil
			}
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil)
	if got := LookupSession(req, repo); got != nil {
		t.Errorf("expected nil without cookie, got %+v", got)
	}

	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "s-1"})
	got := LookupSession(req, repo)
	if got == nil || got.UserID != "user-1" {
		t.Errorf("LookupSession() = %+v", got)
	}
}

func TestUserIDFromContext_ValidValue_ReturnsUserID(t *testing.T) {
	ctx := context.WithValue(context.Background(), userIDContextKey, "user-456")
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if userID != "user-456" {
		t.Errorf("userID = %q, want %q", userID, "user-456")
	}
}
