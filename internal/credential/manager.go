// Package credential はメール送信用OAuth認証情報のライフサイクルを管理する。
// 認可URLの発行、コールバックでの認証情報取得、利用時点での有効性判定、連携解除を扱う。
package credential

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hitoshi/reapply/internal/auth"
	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/repository"
)

// DefaultConnectPath は認可フロー開始エンドポイントのパス。
const DefaultConnectPath = "/auth/google/connect"

// DefaultCredentialTTL は取得した認証情報の有効期間。
const DefaultCredentialTTL = time.Hour

// Provider はOAuthプロバイダの部分集合。
type Provider interface {
	AuthCodeURL(state string, purpose model.FlowPurpose) string
	Exchange(ctx context.Context, code string) (*auth.Grant, error)
}

// StateCodec はOAuth stateの発行と検証を行う。
type StateCodec interface {
	Issue(purpose model.FlowPurpose, userID string) (string, error)
	Verify(state string) (*auth.StateClaims, error)
}

// SessionIssuer はサインインとセッションへの認証情報の紐付けを行う。
type SessionIssuer interface {
	SignIn(ctx context.Context, userInfo auth.OAuthUserInfo, cred *model.OAuthCredential) (*model.Session, error)
	AttachCredential(ctx context.Context, session *model.Session, cred *model.OAuthCredential) error
	DetachCredentials(ctx context.Context, userID string) error
	Logout(ctx context.Context, sessionID string) error
}

// Config はManagerの設定。
type Config struct {
	CredentialTTL time.Duration
	ConnectPath   string
}

// CallbackParams はOAuthコールバックのクエリパラメータ。
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// CallbackResult はコールバック処理の結果。
// Purposeにより呼び出し元が復帰先を決定する。
type CallbackResult struct {
	Purpose model.FlowPurpose
	Session *model.Session
	// NewSession はサインインにより新しいセッションが発行された場合にtrue。
	NewSession bool
}

// Manager はOAuth認証情報のライフサイクルを管理する。
type Manager struct {
	provider Provider
	states   StateCodec
	sessions SessionIssuer
	store    repository.CredentialStore
	config   Config
	now      func() time.Time
}

// NewManager はManagerを生成する。
func NewManager(
	provider Provider,
	states StateCodec,
	sessions SessionIssuer,
	store repository.CredentialStore,
	config Config,
) *Manager {
	if config.CredentialTTL <= 0 {
		config.CredentialTTL = DefaultCredentialTTL
	}
	if config.ConnectPath == "" {
		config.ConnectPath = DefaultConnectPath
	}
	return &Manager{
		provider: provider,
		states:   states,
		sessions: sessions,
		store:    store,
		config:   config,
		now:      time.Now,
	}
}

// GetValidCredential はセッションに紐付いた認証情報が利用可能であればそれを返す。
// 利用できない場合は認可フロー開始URLを返し、呼び出し元が遷移させる。
// ストアへのアクセスやネットワーク通信は行わない。
func (m *Manager) GetValidCredential(_ context.Context, session *model.Session, purpose model.FlowPurpose) (*model.OAuthCredential, string) {
	if session != nil {
		if cred := session.ProviderCredential(); cred.Usable(m.now()) {
			return cred, ""
		}
	}
	return nil, m.ConnectURL(purpose)
}

// ConnectURL は目的付きの認可フロー開始URLを返す。
func (m *Manager) ConnectURL(purpose model.FlowPurpose) string {
	return m.config.ConnectPath + "?" + url.Values{"purpose": {string(purpose)}}.Encode()
}

// AuthorizationURL は署名付きstateを発行し、プロバイダの認可URLを返す。
// stateはCSRF対策用のCookieにも保存するため呼び出し元へ返す。
func (m *Manager) AuthorizationURL(purpose model.FlowPurpose, userID string) (state, authURL string, err error) {
	if purpose != model.PurposeSignIn && userID == "" {
		return "", "", model.NewAuthorizationError("サインインが必要です")
	}
	state, err = m.states.Issue(purpose, userID)
	if err != nil {
		return "", "", fmt.Errorf("failed to issue oauth state: %w", err)
	}
	return state, m.provider.AuthCodeURL(state, purpose), nil
}

// CompleteCallback は認可コードを認証情報に交換し、ストアとセッションに保存する。
// サインイン以外の目的では現在のセッションが必要で、stateの発行ユーザーと一致しなければならない。
// 失敗時は認証情報を一切保存しない。
func (m *Manager) CompleteCallback(ctx context.Context, params CallbackParams, session *model.Session) (*CallbackResult, error) {
	if params.Error != "" {
		reason := params.Error
		if params.ErrorDescription != "" {
			reason = params.Error + ": " + params.ErrorDescription
		}
		slog.Warn("oauth provider returned error", slog.String("reason", reason))
		return nil, model.NewAuthorizationError(reason)
	}

	claims, err := m.states.Verify(params.State)
	if err != nil {
		slog.Warn("oauth state rejected", slog.String("error", err.Error()))
		return nil, model.NewAuthorizationError("stateが不正です")
	}
	purpose := claims.Purpose

	if purpose != model.PurposeSignIn {
		if session == nil {
			return nil, model.NewAuthorizationError("サインインが必要です")
		}
		if claims.UserID != session.UserID {
			slog.Warn("oauth state user mismatch",
				slog.String("session_user_id", session.UserID),
				slog.String("purpose", string(purpose)),
			)
			return nil, model.NewAuthorizationError("認可を開始したユーザーと一致しません")
		}
	}

	if params.Code == "" {
		return nil, model.NewAuthorizationError("認可コードがありません")
	}

	grant, err := m.provider.Exchange(ctx, params.Code)
	if err != nil {
		slog.Error("oauth code exchange failed", slog.String("error", err.Error()))
		return nil, model.NewAuthorizationError("認可コードの交換に失敗しました")
	}

	cred := &model.OAuthCredential{
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
		ExpiresAt:    m.now().Add(m.lifetime(grant)),
		TokenType:    model.TokenTypeBearer,
	}

	if purpose == model.PurposeSignIn {
		newSession, err := m.sessions.SignIn(ctx, grant.User, cred)
		if err != nil {
			return nil, fmt.Errorf("failed to sign in: %w", err)
		}
		if err := m.store.SaveCredential(ctx, newSession.UserID, cred); err != nil {
			// 認証情報を保存できなかったセッションは残さない
			if logoutErr := m.sessions.Logout(ctx, newSession.ID); logoutErr != nil {
				slog.Error("failed to discard session", slog.String("error", logoutErr.Error()))
			}
			return nil, fmt.Errorf("failed to save credential: %w", err)
		}
		slog.Info("mail credential stored",
			slog.String("user_id", newSession.UserID),
			slog.String("purpose", string(purpose)),
		)
		return &CallbackResult{Purpose: purpose, Session: newSession, NewSession: true}, nil
	}

	if err := m.store.SaveCredential(ctx, session.UserID, cred); err != nil {
		return nil, fmt.Errorf("failed to save credential: %w", err)
	}
	if err := m.sessions.AttachCredential(ctx, session, cred); err != nil {
		return nil, fmt.Errorf("failed to attach credential: %w", err)
	}
	slog.Info("mail credential stored",
		slog.String("user_id", session.UserID),
		slog.String("purpose", string(purpose)),
	)
	return &CallbackResult{Purpose: purpose, Session: session}, nil
}

// Disconnect はメール連携を解除する。未連携の場合もエラーにしない。
func (m *Manager) Disconnect(ctx context.Context, userID string) error {
	if err := m.store.ClearCredential(ctx, userID); err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	if err := m.sessions.DetachCredentials(ctx, userID); err != nil {
		return err
	}
	slog.Info("mail disconnected", slog.String("user_id", userID))
	return nil
}

// Status はメール連携状態を返す。
func (m *Manager) Status(ctx context.Context, userID string) (*model.MailStatus, error) {
	profile, err := m.store.FindProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	status := &model.MailStatus{}
	if profile == nil || profile.Credential == nil {
		return status, nil
	}
	expiresAt := profile.Credential.ExpiresAt
	status.ExpiresAt = &expiresAt
	status.Connected = profile.MailConnected && profile.Credential.Usable(m.now())
	return status, nil
}

// lifetime は認証情報の有効期間を返す。プロバイダが示す期限の方が短ければそちらに合わせる。
func (m *Manager) lifetime(grant *auth.Grant) time.Duration {
	if grant.ExpiresIn > 0 && grant.ExpiresIn < m.config.CredentialTTL {
		return grant.ExpiresIn
	}
	return m.config.CredentialTTL
}
