package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// UserServiceInterface はアカウント操作のサービス。
type UserServiceInterface interface {
	// Withdraw は作成中の応募、履歴書、セッション、ユーザー本体を削除する。
	// 応募記録とフォローアップはユーザー削除に連動して消える。
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はアカウント操作のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	config  AuthHandlerConfig
}

// NewUserHandler はUserHandlerを生成する。configは退会後のCookie削除に使う。
func NewUserHandler(service UserServiceInterface, config AuthHandlerConfig) *UserHandler {
	return &UserHandler{service: service, config: config}
}

// Withdraw は退会する。
// DELETE /api/users/me
//
// 成功時はセッションCookieを消し、ブラウザ側に残るCookieとストレージの破棄も指示する。
// 失敗時はCookieに触れず、再試行できるようにする。
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	slog.Info("account withdrawn", slog.String("user_id", userID))
	clearSessionCookie(w, h.config)
	w.Header().Set("Clear-Site-Data", `"cookies", "storage"`)
	w.WriteHeader(http.StatusNoContent)
}
