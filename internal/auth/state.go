package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/reapply/internal/model"
)

// DefaultStateTTL はOAuth stateの有効期間。stateクッキーのMaxAgeと揃える。
const DefaultStateTTL = 10 * time.Minute

const stateIssuer = "reapply"

// StateClaims はOAuth stateに埋め込むクレーム。
// リダイレクトの目的と、開始したユーザーを認可往復の間保持する。
type StateClaims struct {
	Purpose model.FlowPurpose `json:"purpose"`
	UserID  string            `json:"uid,omitempty"`
	jwt.RegisteredClaims
}

// StateCodec はOAuth stateをHS256署名付きJWTとして発行・検証する。
type StateCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewStateCodec はStateCodecを生成する。
func NewStateCodec(secret string, ttl time.Duration) *StateCodec {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue は目的とユーザーIDを含むstateを発行する。
// サインイン時はuserIDを空にする。
func (c *StateCodec) Issue(purpose model.FlowPurpose, userID string) (string, error) {
	now := c.now()
	claims := StateClaims{
		Purpose: purpose,
		UserID:  userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    stateIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.New().String(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign oauth state: %w", err)
	}
	return token, nil
}

// Verify はstateの署名と有効期限を検証し、クレームを返す。
func (c *StateCodec) Verify(state string) (*StateClaims, error) {
	if state == "" {
		return nil, errors.New("oauth state is empty")
	}
	claims := &StateClaims{}
	_, err := jwt.ParseWithClaims(state, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(stateIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid oauth state: %w", err)
	}
	if _, err := model.ParseFlowPurpose(string(claims.Purpose)); err != nil {
		return nil, fmt.Errorf("invalid oauth state: %w", err)
	}
	return claims, nil
}
