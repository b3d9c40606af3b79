package model

import (
	"fmt"
	"time"
)

// TokenTypeBearer はOAuthのBearerトークン種別。
const TokenTypeBearer = "Bearer"

// OAuthCredential はメール送信用のOAuth認証情報を表す。
type OAuthCredential struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
	TokenType    string    `json:"token_type"`
}

// Usable はnow時点でアクセストークンが利用可能かを返す。
// 有効期限ちょうどの時刻は期限切れとして扱う。
func (c *OAuthCredential) Usable(now time.Time) bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return now.Before(c.ExpiresAt)
}

// Profile はユーザーごとのメール連携状態と履歴書設定を表す。
type Profile struct {
	UserID        string
	MailConnected bool
	Credential    *OAuthCredential
	ActiveResume  string
	UpdatedAt     time.Time
}

// FlowPurpose はOAuthリダイレクトの目的を表す。
// コールバック後にどの処理へ復帰するかを決定する。
type FlowPurpose string

const (
	PurposeSignIn          FlowPurpose = "sign_in"
	PurposeMailConnect     FlowPurpose = "mail_connect"
	PurposeSendApplication FlowPurpose = "send_application"
)

// ParseFlowPurpose は文字列をFlowPurposeに変換する。
func ParseFlowPurpose(s string) (FlowPurpose, error) {
	switch p := FlowPurpose(s); p {
	case PurposeSignIn, PurposeMailConnect, PurposeSendApplication:
		return p, nil
	default:
		return "", NewValidationError("purpose", fmt.Sprintf("未知のリダイレクト目的です: %q", s))
	}
}

// MailStatus はメール連携状態の表示用情報を表す。
type MailStatus struct {
	Connected bool       `json:"connected"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}
