// Package auth はOAuth認可フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/reapply/internal/model"
	"github.com/hitoshi/reapply/internal/repository"
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	Provider       string
}

// Grant は認可コード交換の結果を表す。
type Grant struct {
	User         OAuthUserInfo
	AccessToken  string
	RefreshToken string
	TokenType    string
	// ExpiresIn はプロバイダが示したアクセストークンの残り有効期間。不明なら0。
	ExpiresIn time.Duration
}

// OAuthProvider はOAuth認可プロバイダーのインターフェース。
type OAuthProvider interface {
	// AuthCodeURL は目的に応じたスコープを要求する認可URLを生成する。
	AuthCodeURL(state string, purpose model.FlowPurpose) string
	// Exchange は認可コードをトークンに交換し、ユーザー情報を取得する。
	Exchange(ctx context.Context, code string) (*Grant, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service はユーザーの特定とセッション発行を提供する。
type Service struct {
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// SignIn はプロバイダのユーザー情報からユーザーを特定し、セッションを発行する。
// 未登録ユーザーの場合はusersレコードとidentitiesレコードを同時に自動作成する。
// credが指定された場合は発行するセッションにアクセストークンを紐付ける。
func (s *Service) SignIn(ctx context.Context, userInfo OAuthUserInfo, cred *model.OAuthCredential) (*model.Session, error) {
	if userInfo.ProviderUserID == "" {
		return nil, fmt.Errorf("provider user ID is required")
	}

	existing, err := s.identRepo.FindUserByIdentity(ctx, userInfo.Provider, userInfo.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var userID string

	if existing != nil {
		userID = existing.ID
		// 送信元表示に使うため、Google側で変わった連絡先を取り込む
		if userInfo.Email != "" && (existing.Email != userInfo.Email || existing.Name != userInfo.Name) {
			if err := s.userRepo.UpdateContact(ctx, userID, userInfo.Email, userInfo.Name, s.now()); err != nil {
				slog.Warn("failed to refresh user contact",
					slog.String("user_id", userID),
					slog.String("error", err.Error()),
				)
			}
		}
		slog.Info("existing user signed in",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	} else {
		now := s.now()
		newUser := &model.User{
			ID:        uuid.New().String(),
			Email:     userInfo.Email,
			Name:      userInfo.Name,
			CreatedAt: now,
			UpdatedAt: now,
		}
		newIdentity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         newUser.ID,
			Provider:       userInfo.Provider,
			ProviderUserID: userInfo.ProviderUserID,
			CreatedAt:      now,
		}

		if err := s.userRepo.CreateWithIdentity(ctx, newUser, newIdentity); err != nil {
			return nil, fmt.Errorf("failed to create user and identity: %w", err)
		}

		userID = newUser.ID
		slog.Info("new user created",
			slog.String("user_id", userID),
			slog.String("provider", userInfo.Provider),
		)
	}

	session, err := s.createSession(ctx, userID, cred)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// AttachCredential は既存セッションにアクセストークンを紐付ける。
func (s *Service) AttachCredential(ctx context.Context, session *model.Session, cred *model.OAuthCredential) error {
	if err := s.sessionRepo.AttachProviderToken(ctx, session.ID, cred.AccessToken, cred.ExpiresAt); err != nil {
		return fmt.Errorf("failed to attach credential to session: %w", err)
	}
	expiresAt := cred.ExpiresAt
	session.ProviderToken = cred.AccessToken
	session.ProviderTokenExpiresAt = &expiresAt
	return nil
}

// DetachCredentials はユーザーの全セッションからアクセストークンを外す。
func (s *Service) DetachCredentials(ctx context.Context, userID string) error {
	if err := s.sessionRepo.DetachProviderTokens(ctx, userID); err != nil {
		return fmt.Errorf("failed to detach credentials: %w", err)
	}
	return nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user not found")
	}

	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string, cred *model.OAuthCredential) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}
	if cred != nil && cred.AccessToken != "" {
		expiresAt := cred.ExpiresAt
		session.ProviderToken = cred.AccessToken
		session.ProviderTokenExpiresAt = &expiresAt
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
