package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/reapply/internal/middleware"
	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/resume"
)

const resumeFormField = "file"

// ResumeServiceInterface は履歴書ハンドラーが必要とするサービスインターフェース。
type ResumeServiceInterface interface {
	List(ctx context.Context, userID string) ([]*resume.Resume, error)
	Upload(ctx context.Context, userID string, data []byte) (*resume.Resume, error)
	SetActive(ctx context.Context, userID, name string) error
	Delete(ctx context.Context, userID, name string) error
}

// ResumeHandler は履歴書ファイル管理のHTTPハンドラー。
type ResumeHandler struct {
	service ResumeServiceInterface
}

// NewResumeHandler はResumeHandlerを生成する。
func NewResumeHandler(service ResumeServiceInterface) *ResumeHandler {
	return &ResumeHandler{service: service}
}

// List は履歴書一覧を返す。
// GET /api/resumes
func (h *ResumeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	resumes, err := h.service.List(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resumes)
}

// Upload はmultipart/form-dataのfileフィールドで受け取ったPDFを保存する。
// POST /api/resumes
func (h *ResumeHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	// マルチパートのオーバーヘッド分を上乗せして読み込み量を制限する
	r.Body = http.MaxBytesReader(w, r.Body, resume.MaxFileSize+(1<<20))
	file, _, err := r.FormFile(resumeFormField)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidResumeError("fileフィールドにPDFを指定してください"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, resume.MaxFileSize+1))
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidResumeError("ファイルを読み込めませんでした"))
		return
	}

	uploaded, err := h.service.Upload(r.Context(), userID, data)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, uploaded)
}

// SetActive は指定した履歴書をアクティブにする。
// PUT /api/resumes/{name}/active
func (h *ResumeHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.service.SetActive(r.Context(), userID, chi.URLParam(r, "name")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Delete は履歴書を削除する。
// DELETE /api/resumes/{name}
func (h *ResumeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), userID, chi.URLParam(r, "name")); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
