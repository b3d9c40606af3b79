// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity は外部IdPとの紐付け情報を表す。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// Google経由で作成・更新されたセッションはプロバイダのアクセストークンを保持する。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time

	ProviderToken          string
	ProviderTokenExpiresAt *time.Time
}

// ProviderCredential はセッションに紐付いたプロバイダ認証情報を返す。
// トークンが紐付いていない場合はnilを返す。
func (s *Session) ProviderCredential() *OAuthCredential {
	if s == nil || s.ProviderToken == "" || s.ProviderTokenExpiresAt == nil {
		return nil
	}
	return &OAuthCredential{
		AccessToken: s.ProviderToken,
		ExpiresAt:   *s.ProviderTokenExpiresAt,
		TokenType:   TokenTypeBearer,
	}
}
