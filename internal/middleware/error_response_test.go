package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/reapply/internal/model"
)

// TestWriteErrorResponse_WritesUnifiedFormat は統一エラーフォーマットでレスポンスが書き込まれることを検証する。
func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	w := httptest.NewRecorder()

	apiErr := &model.APIError{
		Code:     "TEST_ERROR",
		Message:  "テストエラーです。",
		Category: "validation",
		Action:   "正しい値を入力してください。",
	}

	WriteErrorResponse(w, http.StatusBadRequest, apiErr)

	resp := w.Result()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}

	if body.Code != "TEST_ERROR" {
		t.Errorf("code = %q, want %q", body.Code, "TEST_ERROR")
	}
	if body.Message != "テストエラーです。" {
		t.Errorf("message = %q, want %q", body.Message, "テストエラーです。")
	}
	if body.Category != "validation" {
		t.Errorf("category = %q, want %q", body.Category, "validation")
	}
	if body.Action != "正しい値を入力してください。" {
		t.Errorf("action = %q, want %q", body.Action, "正しい値を入力してください。")
	}
}

// TestWriteAPIError_StatusFollowsCode はエラーコードからステータスが決まることを検証する。
func TestWriteAPIError_StatusFollowsCode(t *testing.T) {
	tests := []struct {
		name       string
		err        *model.APIError
		wantStatus int
	}{
		{"validation", model.NewValidationError("company", "required"), http.StatusBadRequest},
		{"invalid request", model.NewInvalidRequestError(), http.StatusBadRequest},
		{"invalid resume", model.NewInvalidResumeError("not a pdf"), http.StatusBadRequest},
		{"unauthorized", model.NewUnauthorizedError(), http.StatusUnauthorized},
		{"authorization", model.NewAuthorizationError("access_denied"), http.StatusUnauthorized},
		{"csrf", model.NewCSRFError(), http.StatusForbidden},
		{"application not found", model.NewApplicationNotFoundError("app-1"), http.StatusNotFound},
		{"user not found", model.NewUserNotFoundError(), http.StatusNotFound},
		{"invalid transition", model.NewInvalidTransitionError("collecting_details", "send"), http.StatusConflict},
		{"send in progress", model.NewSendInProgressError(), http.StatusConflict},
		{"resume limit", model.NewResumeLimitError(2), http.StatusConflict},
		{"delivery", model.NewDeliveryError("quota"), http.StatusBadGateway},
		{"storage disabled", model.NewStorageDisabledError(), http.StatusServiceUnavailable},
		// 送信後の記録失敗は再送させないため500のまま返す
		{"persistence", model.NewPersistenceError("db down"), http.StatusInternalServerError},
		{"unknown code", &model.APIError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteAPIError(w, tt.err)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body.Code != tt.err.Code {
				t.Errorf("code = %q, want %q", body.Code, tt.err.Code)
			}
		})
	}
}

// TestInternalServerError_ReturnsSystemError は内部エラーが統一フォーマットで返ることを検証する。
func TestInternalServerError_ReturnsSystemError(t *testing.T) {
	w := httptest.NewRecorder()

	WriteInternalServerError(w)

	resp := w.Result()
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusInternalServerError)
	}

	var body ErrorResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}

	if body.Code != model.ErrCodeInternal {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeInternal)
	}
	if body.Category != "system" {
		t.Errorf("category = %q, want %q", body.Category, "system")
	}
	if body.Action == "" {
		t.Error("action should not be empty")
	}
}
