package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/reapply/internal/model"
)

const (
	defaultGoogleAuthURL     = "https://accounts.google.com/o/oauth2/auth"
	defaultGoogleTokenURL    = "https://oauth2.googleapis.com/token"
	defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

	// GmailSendScope はGmailでのメール送信に必要なスコープ。
	GmailSendScope = "https://www.googleapis.com/auth/gmail.send"
)

// GoogleOAuthConfig はGoogle OAuthプロバイダーの設定。
type GoogleOAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string

	// テスト用にオーバーライド可能なURL
	AuthURL     string
	TokenURL    string
	UserInfoURL string

	HTTPClient *http.Client
}

// GoogleOAuthProvider はGoogle OAuth 2.0による認可を提供する。
// サインインとメール送信権限の取得を同じ認可コードフローで扱う。
type GoogleOAuthProvider struct {
	config GoogleOAuthConfig
}

// NewGoogleOAuthProvider はGoogleOAuthProviderを生成する。
func NewGoogleOAuthProvider(config GoogleOAuthConfig) *GoogleOAuthProvider {
	if config.AuthURL == "" {
		config.AuthURL = defaultGoogleAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultGoogleTokenURL
	}
	if config.UserInfoURL == "" {
		config.UserInfoURL = defaultGoogleUserInfoURL
	}
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	return &GoogleOAuthProvider{config: config}
}

// scopesFor は目的ごとの要求スコープを返す。
// どの目的でもメール送信権限を要求し、サインイン時のみprofileを追加する。
func scopesFor(purpose model.FlowPurpose) string {
	scopes := []string{"openid", "email"}
	if purpose == model.PurposeSignIn {
		scopes = append(scopes, "profile")
	}
	scopes = append(scopes, GmailSendScope)
	return strings.Join(scopes, " ")
}

// AuthCodeURL はGoogle OAuthの認可URLを生成する。
// リフレッシュトークンを確実に受け取るため、常に同意画面を表示させる。
func (p *GoogleOAuthProvider) AuthCodeURL(state string, purpose model.FlowPurpose) string {
	params := url.Values{
		"client_id":     {p.config.ClientID},
		"redirect_uri":  {p.config.RedirectURL},
		"response_type": {"code"},
		"scope":         {scopesFor(purpose)},
		"state":         {state},
		"access_type":   {"offline"},
		"prompt":        {"consent"},
	}
	return p.config.AuthURL + "?" + params.Encode()
}

// googleTokenResponse はトークンエンドポイントの成功レスポンス。
type googleTokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
}

type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// googleErrorResponse はOAuthエンドポイントの失敗レスポンス。
type googleErrorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// maxGoogleResponseBytes を超えるレスポンスは読み捨てる。
const maxGoogleResponseBytes = 1 << 20

// Exchange は認可コードをトークンに交換し、そのトークンでアカウント情報を取得する。
func (p *GoogleOAuthProvider) Exchange(ctx context.Context, code string) (*Grant, error) {
	form := url.Values{
		"code":          {code},
		"client_id":     {p.config.ClientID},
		"client_secret": {p.config.ClientSecret},
		"redirect_uri":  {p.config.RedirectURL},
		"grant_type":    {"authorization_code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var token googleTokenResponse
	if err := p.doJSON(req, &token); err != nil {
		return nil, fmt.Errorf("failed to exchange token: %w", err)
	}
	if token.AccessToken == "" {
		return nil, errors.New("failed to exchange token: empty access token")
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, p.config.UserInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)

	var info googleUserInfo
	if err := p.doJSON(req, &info); err != nil {
		return nil, fmt.Errorf("failed to fetch user info: %w", err)
	}
	if info.Sub == "" {
		return nil, errors.New("failed to fetch user info: empty subject")
	}

	return &Grant{
		User: OAuthUserInfo{
			ProviderUserID: info.Sub,
			Email:          info.Email,
			Name:           info.Name,
			Provider:       "google",
		},
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		TokenType:    token.TokenType,
		ExpiresIn:    time.Duration(token.ExpiresIn) * time.Second,
	}, nil
}

// doJSON はリクエストを送り、2xxならoutへデコードする。
// それ以外はGoogleのエラー応答からerrorコードを取り出してエラーにする。
func (p *GoogleOAuthProvider) doJSON(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := p.config.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGoogleResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gerr googleErrorResponse
		if json.Unmarshal(body, &gerr) == nil && gerr.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, gerr.Error)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

var _ OAuthProvider = (*GoogleOAuthProvider)(nil)
