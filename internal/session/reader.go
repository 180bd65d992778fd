package session

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims はトークンに埋め込まれたクレームのうち、エッジが参照するものです。
type Claims struct {
	OrganizationID *int64 `json:"organization_id,omitempty"`
	jwt.RegisteredClaims
}

// DecodeClaims は署名を検証せずにトークンのクレームを取り出します。
// 発行元の秘密鍵はエッジにないため、結果は UX 判断にのみ使います。
func DecodeClaims(token string) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenDecode
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenDecode, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, ErrTokenDecode
	}
	return claims, nil
}

// State はセッションの状態です。
type State string

const (
	StateAbsent  State = "absent"
	StateExpired State = "expired"
	StateValid   State = "valid"
)

// TokenSource は生のトークンを返すものです。Store はこれを満たします。
type TokenSource interface {
	CurrentToken() (string, bool)
}

// Reader は保存済みトークンが有効期限内かどうかを判定します。
type Reader struct {
	tokens TokenSource
	now    func() time.Time
}

// NewReader は Reader を作成します。
func NewReader(tokens TokenSource) *Reader {
	return &Reader{tokens: tokens, now: time.Now}
}

// State はトークンの有無と exp クレームから状態を返します。
// 読めないトークンは「なし」、exp のないトークンは「期限切れ」として扱います。
func (r *Reader) State() State {
	token, ok := r.tokens.CurrentToken()
	if !ok {
		return StateAbsent
	}
	claims, err := DecodeClaims(token)
	if err != nil {
		return StateAbsent
	}
	if claims.ExpiresAt == nil {
		return StateExpired
	}
	if !claims.ExpiresAt.Time.After(r.now()) {
		return StateExpired
	}
	return StateValid
}

// IsValid はトークンが存在し、exp が現在時刻より厳密に後であれば true を返します。
func (r *Reader) IsValid() bool {
	return r.State() == StateValid
}
