// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/reapply/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateContact はメールアドレスと表示名を更新する。変化がなければ何もしない。
	UpdateContact(ctx context.Context, id, email, name string, at time.Time) error

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するidentities、sessions、profiles、applications、follow_upsはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindUserByIdentity はプロバイダのアカウントに紐付くユーザーを返す。
	// 紐付けがない場合はnilを返す。
	FindUserByIdentity(ctx context.Context, provider, providerUserID string) (*model.User, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// AttachProviderToken はセッションにプロバイダのアクセストークンを紐付ける。
	AttachProviderToken(ctx context.Context, id, token string, expiresAt time.Time) error
	// DetachProviderTokens は指定ユーザーの全セッションからプロバイダトークンを外す。
	DetachProviderTokens(ctx context.Context, userID string) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// CredentialStore はユーザーごとのメール送信用認証情報の永続化インターフェース。
type CredentialStore interface {
	// FindProfile はユーザーのプロフィールを取得する。見つからない場合はnilを返す。
	FindProfile(ctx context.Context, userID string) (*model.Profile, error)
	// SaveCredential は認証情報を上書き保存し、メール連携済みフラグを立てる。
	SaveCredential(ctx context.Context, userID string, cred *model.OAuthCredential) error
	// ClearCredential は認証情報を削除し、メール連携済みフラグを下ろす。
	// 既に未連携の場合もエラーにしない。
	ClearCredential(ctx context.Context, userID string) error
}

// ResumeSettingRepository はアクティブな履歴書の設定を永続化するインターフェース。
type ResumeSettingRepository interface {
	// GetActiveResume はアクティブな履歴書のオブジェクト名を返す。未設定の場合は空文字を返す。
	GetActiveResume(ctx context.Context, userID string) (string, error)
	// SetActiveResume はアクティブな履歴書を設定する。空文字で解除する。
	SetActiveResume(ctx context.Context, userID, name string) error
}

// ApplicationRepository は応募記録の永続化インターフェース。
// すべての操作はユーザーIDでスコープされる。
type ApplicationRepository interface {
	// Create は応募記録を作成し、IDと作成日時を設定する。
	Create(ctx context.Context, app *model.JobApplication) error

	// FindByID は指定ユーザーの応募を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, userID, id string) (*model.JobApplication, error)

	// ListByUserID はユーザーの応募一覧を応募日の降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.JobApplication, error)

	// UpdateStatus は応募ステータスを更新する。対象が存在しない場合はfalseを返す。
	UpdateStatus(ctx context.Context, userID, id string, status model.ApplicationStatus) (bool, error)

	// CountByStatus はユーザーの応募数をステータス別に返す。
	CountByStatus(ctx context.Context, userID string) (map[model.ApplicationStatus]int, error)
}

// FollowUpRepository はフォローアップ予定の永続化インターフェース。
type FollowUpRepository interface {
	// CreateBatch はフォローアップを同一トランザクションで一括作成し、
	// 応募のfollow_up_countを作成件数で上書きする。
	CreateBatch(ctx context.Context, applicationID string, followUps []*model.FollowUp) error

	// ListByApplicationID は応募のフォローアップを予定日時の昇順で返す。
	ListByApplicationID(ctx context.Context, applicationID string) ([]*model.FollowUp, error)
}
