package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

const contextStoreKey = "session.store"

var errNoSessionMiddleware = errors.New("session: sessions middleware is not installed")

// CookieOptions はトークンクッキーの属性です。
type CookieOptions struct {
	TokenCookieName string
	MaxAge          time.Duration
	Secure          bool
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.TokenCookieName == "" {
		o.TokenCookieName = "token"
	}
	if o.MaxAge <= 0 {
		o.MaxAge = DefaultMaxAge
	}
	return o
}

// TokenFromRequest はリクエスト自身の Cookie ヘッダーからトークンを読み取ります。
// Cookie がない、または読めない場合は「トークンなし」として扱います。
func TokenFromRequest(r *http.Request, name string) (string, bool) {
	if r == nil {
		return "", false
	}
	cookie, err := r.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// CookieStore は 1 リクエストに閉じた Store です。
// トークンは生のクッキー、プロフィールは gin-contrib/sessions の署名付きクッキーに保存します。
type CookieStore struct {
	c    *gin.Context
	opts CookieOptions

	// 同一リクエスト内で書き込んだ値を後続の読み取りに反映するため保持する
	written bool
	token   string
}

// FromContext はリクエストに紐づく CookieStore を返します。同じリクエストでは同じ値を返します。
func FromContext(c *gin.Context, opts CookieOptions) *CookieStore {
	if v, ok := c.Get(contextStoreKey); ok {
		if store, ok := v.(*CookieStore); ok {
			return store
		}
	}
	store := &CookieStore{c: c, opts: opts.withDefaults()}
	c.Set(contextStoreKey, store)
	return store
}

// Establish はプロフィールと CSRF トークンを保存したうえでトークンクッキーを発行します。
// プロフィールの保存に失敗した場合はトークンも書き込みません。
func (s *CookieStore) Establish(resp LoginResponse) error {
	profile, err := composeProfile(resp)
	if err != nil {
		return err
	}
	encoded, err := encodeProfile(profile)
	if err != nil {
		return err
	}

	csrf, err := generateCSRFToken()
	if err != nil {
		return fmt.Errorf("failed to generate csrf token: %w", err)
	}

	sess, err := s.profileSession()
	if err != nil {
		return err
	}
	sess.Set(ProfileKey, encoded)
	sess.Set(CSRFKey, csrf)
	if err := sess.Save(); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	s.setTokenCookie(resp.Token, int(s.opts.MaxAge.Seconds()))
	s.written = true
	s.token = resp.Token
	return nil
}

// CurrentToken はトークンを返します。プロフィールと揃っていない場合は返しません。
func (s *CookieStore) CurrentToken() (string, bool) {
	token, _, ok := s.load()
	return token, ok
}

// CurrentProfile はプロフィールを返します。
func (s *CookieStore) CurrentProfile() *Profile {
	_, profile, _ := s.load()
	return profile
}

func (s *CookieStore) load() (string, *Profile, bool) {
	token := s.token
	if !s.written {
		token, _ = TokenFromRequest(s.c.Request, s.opts.TokenCookieName)
	}
	sess, err := s.profileSession()
	if err != nil {
		return "", nil, false
	}
	raw, _ := sess.Get(ProfileKey).(string)
	return paired(token, raw)
}

// Revoke はトークンクッキーとプロフィールを削除します。
func (s *CookieStore) Revoke() error {
	sess, err := s.profileSession()
	if err != nil {
		return err
	}

	s.setTokenCookie("", -1)
	s.written = true
	s.token = ""

	sess.Clear()
	if err := sess.Save(); err != nil {
		return fmt.Errorf("failed to clear profile: %w", err)
	}
	return nil
}

func (s *CookieStore) profileSession() (sessions.Session, error) {
	if _, ok := s.c.Get(sessions.DefaultKey); !ok {
		return nil, errNoSessionMiddleware
	}
	return sessions.Default(s.c), nil
}

func (s *CookieStore) setTokenCookie(value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     s.opts.TokenCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		Secure:   s.opts.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	http.SetCookie(s.c.Writer, cookie)
}
