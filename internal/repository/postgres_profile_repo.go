package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/reapply/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
// メール送信用の認証情報ストアとアクティブ履歴書の設定を兼ねる。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindProfile はユーザーのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindProfile(ctx context.Context, userID string) (*model.Profile, error) {
	p := &model.Profile{UserID: userID}
	var (
		accessToken  sql.NullString
		refreshToken sql.NullString
		tokenType    sql.NullString
		expiresAt    sql.NullTime
		activeResume sql.NullString
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT mail_connected, mail_access_token, mail_refresh_token, mail_token_type,
		        mail_token_expires_at, active_resume, updated_at
		 FROM profiles
		 WHERE user_id = $1`,
		userID,
	).Scan(&p.MailConnected, &accessToken, &refreshToken, &tokenType, &expiresAt, &activeResume, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	if accessToken.Valid && expiresAt.Valid {
		p.Credential = &model.OAuthCredential{
			AccessToken:  accessToken.String,
			RefreshToken: refreshToken.String,
			ExpiresAt:    expiresAt.Time,
			TokenType:    tokenType.String,
		}
	}
	p.ActiveResume = activeResume.String
	return p, nil
}

// SaveCredential は認証情報を上書き保存し、メール連携済みフラグを立てる。
// 複数セッションから同時に呼ばれた場合は最後の書き込みが残る。
func (r *PostgresProfileRepo) SaveCredential(ctx context.Context, userID string, cred *model.OAuthCredential) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, mail_connected, mail_access_token, mail_refresh_token,
		                       mail_token_type, mail_token_expires_at, updated_at)
		 VALUES ($1, true, $2, $3, $4, $5, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		     mail_connected = true,
		     mail_access_token = EXCLUDED.mail_access_token,
		     mail_refresh_token = EXCLUDED.mail_refresh_token,
		     mail_token_type = EXCLUDED.mail_token_type,
		     mail_token_expires_at = EXCLUDED.mail_token_expires_at,
		     updated_at = now()`,
		userID, cred.AccessToken, nullString(cred.RefreshToken), cred.TokenType, cred.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// ClearCredential は認証情報を削除し、メール連携済みフラグを下ろす。
// プロフィールが存在しない場合も成功として扱う。
func (r *PostgresProfileRepo) ClearCredential(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE profiles
		 SET mail_connected = false,
		     mail_access_token = NULL,
		     mail_refresh_token = NULL,
		     mail_token_type = NULL,
		     mail_token_expires_at = NULL,
		     updated_at = now()
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear credential: %w", err)
	}
	return nil
}

// GetActiveResume はアクティブな履歴書のオブジェクト名を返す。未設定の場合は空文字を返す。
func (r *PostgresProfileRepo) GetActiveResume(ctx context.Context, userID string) (string, error) {
	var name sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT active_resume FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get active resume: %w", err)
	}
	return name.String, nil
}

// SetActiveResume はアクティブな履歴書を設定する。空文字で解除する。
func (r *PostgresProfileRepo) SetActiveResume(ctx context.Context, userID, name string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, active_resume, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		     active_resume = EXCLUDED.active_resume,
		     updated_at = now()`,
		userID, nullString(name),
	)
	if err != nil {
		return fmt.Errorf("failed to set active resume: %w", err)
	}
	return nil
}

// compile-time interface check
var (
	_ CredentialStore         = (*PostgresProfileRepo)(nil)
	_ ResumeSettingRepository = (*PostgresProfileRepo)(nil)
)
