// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/reapply/internal/credential"
	"github.com/hitoshi/reapply/internal/middleware"
	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/pipeline"
)

const (
	oauthStateCookie = "oauth_state"

	// defaultFailureRedirectDelay は認証失敗ページからトップへ戻るまでの既定の待ち時間。
	defaultFailureRedirectDelay = 2 * time.Second
)

// AuthServiceInterface は認証ハンドラーが必要とするセッション操作のインターフェース。
type AuthServiceInterface interface {
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// CredentialFlowInterface はOAuth認可フローの開始と完了を行うインターフェース。
type CredentialFlowInterface interface {
	AuthorizationURL(purpose model.FlowPurpose, userID string) (state, authURL string, err error)
	CompleteCallback(ctx context.Context, params credential.CallbackParams, session *model.Session) (*credential.CallbackResult, error)
}

// PipelineResumer は認可完了後に中断していた応募メール送信を再開する。
type PipelineResumer interface {
	Resume(ctx context.Context, session *model.Session) (*pipeline.SendResult, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
	// FailureRedirectDelay は認証失敗ページを表示してからBaseURLへ戻るまでの時間。
	FailureRedirectDelay time.Duration
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	flow     CredentialFlowInterface
	resumer  PipelineResumer
	sessions middleware.SessionFinder
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(
	service AuthServiceInterface,
	flow CredentialFlowInterface,
	resumer PipelineResumer,
	sessions middleware.SessionFinder,
	config AuthHandlerConfig,
) *AuthHandler {
	if config.FailureRedirectDelay <= 0 {
		config.FailureRedirectDelay = defaultFailureRedirectDelay
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &AuthHandler{
		service:  service,
		flow:     flow,
		resumer:  resumer,
		sessions: sessions,
		config:   config,
	}
}

// Login はサインイン目的でGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.startFlow(w, r, model.PurposeSignIn, "")
}

// Connect は指定された目的でGoogle OAuthフローを開始する。
// サインイン以外の目的ではログイン済みである必要がある。
// GET /auth/google/connect?purpose=mail_connect|send_application
func (h *AuthHandler) Connect(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("purpose")
	if raw == "" {
		raw = string(model.PurposeMailConnect)
	}
	purpose, err := model.ParseFlowPurpose(raw)
	if err != nil {
		h.renderAuthFailure(w, http.StatusBadRequest, "リダイレクト目的が不正です。")
		return
	}
	if purpose == model.PurposeSignIn {
		h.startFlow(w, r, purpose, "")
		return
	}

	session := middleware.LookupSession(r, h.sessions)
	if session == nil {
		h.renderAuthFailure(w, http.StatusUnauthorized, "サインインが必要です。")
		return
	}
	h.startFlow(w, r, purpose, session.UserID)
}

func (h *AuthHandler) startFlow(w http.ResponseWriter, r *http.Request, purpose model.FlowPurpose, userID string) {
	state, authURL, err := h.flow.AuthorizationURL(purpose, userID)
	if err != nil {
		slog.Error("failed to start oauth flow",
			slog.String("purpose", string(purpose)),
			slog.String("error", err.Error()),
		)
		h.renderAuthFailure(w, http.StatusInternalServerError, "認証を開始できませんでした。")
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, authURL, http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理し、stateに含まれる目的に応じて復帰する。
// 失敗時はメッセージを表示してBaseURLへ戻る中間ページを返す。
// GET /auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// 1. stateの検証（CSRF対策）
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch")
		h.renderAuthFailure(w, http.StatusUnauthorized, "認証リクエストが無効です。もう一度お試しください。")
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	// 2. 認可コードを認証情報に交換
	params := credential.CallbackParams{
		Code:             query.Get("code"),
		State:            state,
		Error:            query.Get("error"),
		ErrorDescription: query.Get("error_description"),
	}
	result, err := h.flow.CompleteCallback(r.Context(), params, middleware.LookupSession(r, h.sessions))
	if err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeAuthorization {
			h.renderAuthFailure(w, http.StatusUnauthorized, apiErr.Message)
			return
		}
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.renderAuthFailure(w, http.StatusInternalServerError, "認証処理に失敗しました。")
		return
	}

	// 3. 新しいセッションの場合はCookieを設定（HTTP Only）
	if result.NewSession {
		http.SetCookie(w, &http.Cookie{
			Name:     middleware.SessionCookieName,
			Value:    result.Session.ID,
			Path:     "/",
			Domain:   h.config.CookieDomain,
			MaxAge:   h.config.SessionMaxAge,
			HttpOnly: true,
			Secure:   h.config.CookieSecure,
			SameSite: http.SameSiteLaxMode,
		})
	}

	// 4. 目的ごとの復帰先へリダイレクト
	http.Redirect(w, r, h.resumeDestination(r.Context(), result), http.StatusTemporaryRedirect)
}

// resumeDestination はコールバック完了後の遷移先を返す。
// 送信目的の場合は中断していた送信を再開する。送信失敗はパイプライン状態に記録される。
func (h *AuthHandler) resumeDestination(ctx context.Context, result *credential.CallbackResult) string {
	switch result.Purpose {
	case model.PurposeMailConnect:
		return h.config.BaseURL + "/settings"
	case model.PurposeSendApplication:
		dest := h.config.BaseURL + "/applications/new"
		if h.resumer == nil {
			return dest
		}
		sent, err := h.resumer.Resume(ctx, result.Session)
		if err != nil {
			slog.Warn("resumed send failed",
				slog.String("user_id", result.Session.UserID),
				slog.String("error", err.Error()),
			)
			return dest
		}
		if sent != nil && sent.Status == pipeline.SendStatusSent {
			return dest + "?sent=1"
		}
		return dest
	default:
		return h.config.BaseURL
	}
}

// Logout はセッションを破棄する。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err == nil && cookie.Value != "" {
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
			// ログアウト失敗してもCookieはクリアする
		}
	}

	clearSessionCookie(w, h.config)
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil || cookie.Value == "" {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		slog.Warn("failed to get current user", slog.String("error", err.Error()))
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":    user.ID,
		"email": user.Email,
		"name":  user.Name,
	})
}

// clearSessionCookie はセッションCookieを削除する。
func clearSessionCookie(w http.ResponseWriter, config AuthHandlerConfig) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

var authFailureTemplate = template.Must(template.New("auth_failure").Parse(`<!DOCTYPE html>
<html lang="ja">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="{{.Delay}};url={{.RedirectURL}}">
<title>認証に失敗しました</title>
</head>
<body>
<p>{{.Message}}</p>
<p><a href="{{.RedirectURL}}">トップページへ戻る</a></p>
</body>
</html>
`))

// renderAuthFailure は失敗理由を表示し、一定時間後にBaseURLへ戻る中間ページを返す。
func (h *AuthHandler) renderAuthFailure(w http.ResponseWriter, statusCode int, message string) {
	redirectURL := h.config.BaseURL
	if redirectURL == "" {
		redirectURL = "/"
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	err := authFailureTemplate.Execute(w, struct {
		Delay       int
		RedirectURL string
		Message     string
	}{
		Delay:       int(math.Ceil(h.config.FailureRedirectDelay.Seconds())),
		RedirectURL: redirectURL,
		Message:     message,
	})
	if err != nil {
		slog.Error("failed to render auth failure page", slog.String("error", err.Error()))
	}
}
