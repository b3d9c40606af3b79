package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/reapply/internal/model"
)

// MailServiceInterface はメール連携設定ハンドラーが必要とするサービスインターフェース。
type MailServiceInterface interface {
	Status(ctx context.Context, userID string) (*model.MailStatus, error)
	Disconnect(ctx context.Context, userID string) error
	ConnectURL(purpose model.FlowPurpose) string
}

// MailHandler はメール連携設定のHTTPハンドラー。
type MailHandler struct {
	service MailServiceInterface
}

// NewMailHandler はMailHandlerを生成する。
func NewMailHandler(service MailServiceInterface) *MailHandler {
	return &MailHandler{service: service}
}

// mailStatusResponse はメール連携状態のAPIレスポンス。
type mailStatusResponse struct {
	Connected  bool       `json:"connected"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ConnectURL string     `json:"connect_url"`
}

// Status はメール連携状態と連携開始URLを返す。
// GET /api/mail/status
func (h *MailHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	status, err := h.service.Status(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mailStatusResponse{
		Connected:  status.Connected,
		ExpiresAt:  status.ExpiresAt,
		ConnectURL: h.service.ConnectURL(model.PurposeMailConnect),
	})
}

// Disconnect はメール連携を解除する。
// DELETE /api/mail
func (h *MailHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.service.Disconnect(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
