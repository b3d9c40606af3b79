package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reapply/internal/followup"
	"github.com/hitoshi/reapply/internal/model"
)

// ApplicationServiceInterface は応募記録ハンドラーが必要とするサービスインターフェース。
type ApplicationServiceInterface interface {
	List(ctx context.Context, userID string) ([]applicationResponse, error)
	Get(ctx context.Context, userID, id string) (*applicationResponse, error)
	UpdateStatus(ctx context.Context, userID, id, status string) (*applicationResponse, error)
	Stats(ctx context.Context, userID string) (*model.ApplicationStats, error)
}

// FollowUpServiceInterface はフォローアップハンドラーが必要とするサービスインターフェース。
type FollowUpServiceInterface interface {
	Configure(ctx context.Context, userID, applicationID string, req followup.Request) ([]followUpResponse, error)
	List(ctx context.Context, userID, applicationID string) ([]followUpResponse, error)
}

// ApplicationHandler は応募記録とフォローアップのHTTPハンドラー。
type ApplicationHandler struct {
	service   ApplicationServiceInterface
	followUps FollowUpServiceInterface
}

// NewApplicationHandler はApplicationHandlerを生成する。
func NewApplicationHandler(service ApplicationServiceInterface, followUps FollowUpServiceInterface) *ApplicationHandler {
	return &ApplicationHandler{
		service:   service,
		followUps: followUps,
	}
}

// applicationResponse は応募記録のAPIレスポンス。
type applicationResponse struct {
	ID             string     `json:"id"`
	Company        string     `json:"company"`
	Position       string     `json:"position"`
	WorkMode       string     `json:"work_mode"`
	Location       string     `json:"location"`
	Status         string     `json:"status"`
	AppliedDate    string     `json:"applied_date"`
	Description    string     `json:"description"`
	RecruiterEmail string     `json:"recruiter_email"`
	EmailThreadID  string     `json:"email_thread_id,omitempty"`
	LastReplyAt    *time.Time `json:"last_reply_at,omitempty"`
	FollowUpCount  int        `json:"follow_up_count"`
	CreatedAt      time.Time  `json:"created_at"`
}

// followUpResponse はフォローアップ予定のAPIレスポンス。
type followUpResponse struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	Subject     string    `json:"subject"`
	Body        string    `json:"body"`
	Status      string    `json:"status"`
	Timing      string    `json:"timing"`
}

// updateStatusRequest はステータス更新リクエストのボディ。
type updateStatusRequest struct {
	Status string `json:"status"`
}

// List は応募一覧を返す。
// GET /api/applications
func (h *ApplicationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	apps, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if apps == nil {
		apps = []applicationResponse{}
	}
	writeJSON(w, http.StatusOK, apps)
}

// Stats はダッシュボード用の集計値を返す。
// GET /api/applications/stats
func (h *ApplicationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Get は応募詳細を返す。
// GET /api/applications/{id}
func (h *ApplicationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	app, err := h.service.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// UpdateStatus は応募ステータスを更新する。
// PATCH /api/applications/{id}/status
func (h *ApplicationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	app, err := h.service.UpdateStatus(r.Context(), userID, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

// ListFollowUps は応募のフォローアップ予定を返す。
// GET /api/applications/{id}/follow-ups
func (h *ApplicationHandler) ListFollowUps(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	followUps, err := h.followUps.List(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if followUps == nil {
		followUps = []followUpResponse{}
	}
	writeJSON(w, http.StatusOK, followUps)
}

// ConfigureFollowUps はフォローアップ予定を一括登録する。
// POST /api/applications/{id}/follow-ups
func (h *ApplicationHandler) ConfigureFollowUps(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	var req followup.Request
	if !decodeJSON(w, r, &req) {
		return
	}
	followUps, err := h.followUps.Configure(r.Context(), userID, chi.URLParam(r, "id"), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, followUps)
}

// --- ヘルパー関数 ---

// toApplicationResponse はmodel.JobApplicationからAPIレスポンスに変換する。
func toApplicationResponse(app *model.JobApplication) applicationResponse {
	return applicationResponse{
		ID:             app.ID,
		Company:        app.Company,
		Position:       app.Position,
		WorkMode:       string(app.WorkMode),
		Location:       app.Location,
		Status:         string(app.Status),
		AppliedDate:    app.AppliedDate.Format(model.DateLayout),
		Description:    app.Description,
		RecruiterEmail: app.RecruiterEmail,
		EmailThreadID:  app.EmailThreadID,
		LastReplyAt:    app.LastReplyAt,
		FollowUpCount:  app.FollowUpCount,
		CreatedAt:      app.CreatedAt,
	}
}

// toFollowUpResponse はmodel.FollowUpからAPIレスポンスに変換する。
func toFollowUpResponse(f *model.FollowUp) followUpResponse {
	return followUpResponse{
		ID:          f.ID,
		ScheduledAt: f.ScheduledAt,
		Subject:     f.Subject,
		Body:        f.Body,
		Status:      string(f.Status),
		Timing:      string(f.Timing),
	}
}
