package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/pipeline"
)

// PipelineServiceInterface は応募メール作成ハンドラーが必要とするサービスインターフェース。
type PipelineServiceInterface interface {
	Current(ctx context.Context, session *model.Session) (*pipeline.State, error)
	SubmitDetails(ctx context.Context, session *model.Session, details model.ApplicationDetails) (*pipeline.State, error)
	SaveDraft(ctx context.Context, session *model.Session, draft model.EmailDraft) (*pipeline.State, error)
	Back(ctx context.Context, session *model.Session) (*pipeline.State, error)
	Send(ctx context.Context, session *model.Session) (*pipeline.SendResult, error)
	Resume(ctx context.Context, session *model.Session) (*pipeline.SendResult, error)
	Abandon(ctx context.Context, session *model.Session) error
}

// PipelineHandler は応募メール作成パイプラインのHTTPハンドラー。
type PipelineHandler struct {
	service PipelineServiceInterface
}

// NewPipelineHandler はPipelineHandlerを生成する。
func NewPipelineHandler(service PipelineServiceInterface) *PipelineHandler {
	return &PipelineHandler{service: service}
}

// sendResponse は送信操作のAPIレスポンス。
type sendResponse struct {
	Status      pipeline.SendStatus  `json:"status"`
	Application *applicationResponse `json:"application,omitempty"`
	AuthURL     string               `json:"auth_url,omitempty"`
}

// Get は現在のパイプライン状態を返す。
// GET /api/pipeline
func (h *PipelineHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	state, err := h.service.Current(r.Context(), session)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SubmitDetails は応募情報を検証して下書き編集段階へ進む。
// POST /api/pipeline/details
func (h *PipelineHandler) SubmitDetails(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	var details model.ApplicationDetails
	if !decodeJSON(w, r, &details) {
		return
	}
	state, err := h.service.SubmitDetails(r.Context(), session, details)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// SaveDraft は編集した下書きを保存してプレビュー段階へ進む。
// PUT /api/pipeline/draft
func (h *PipelineHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	var draft model.EmailDraft
	if !decodeJSON(w, r, &draft) {
		return
	}
	state, err := h.service.SaveDraft(r.Context(), session, draft)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Back は1つ前の段階へ戻る。
// POST /api/pipeline/back
func (h *PipelineHandler) Back(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	state, err := h.service.Back(r.Context(), session)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Send は応募メールを送信する。
// 認証情報が利用できない場合は202と認可URLを返し、フロントエンドが遷移させる。
// POST /api/pipeline/send
func (h *PipelineHandler) Send(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	result, err := h.service.Send(r.Context(), session)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if result.Status == pipeline.SendStatusAwaitingAuthorization {
		writeJSON(w, http.StatusAccepted, sendResponse{
			Status:  result.Status,
			AuthURL: result.AuthURL,
		})
		return
	}

	resp := sendResponse{Status: result.Status}
	if result.Application != nil {
		app := toApplicationResponse(result.Application)
		resp.Application = &app
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Abandon は作成中のパイプラインを破棄する。
// DELETE /api/pipeline
func (h *PipelineHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	session, ok := requireSession(w, r)
	if !ok {
		return
	}
	if err := h.service.Abandon(r.Context(), session); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
