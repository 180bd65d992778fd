// Package session はトークンとプロフィールの保存、およびトークンの有効期限判定を提供します。
package session

import (
	"sync"
	"time"
)

const (
	// ProfileKey はプロフィールを保存する固定キーです。
	ProfileKey = "user"

	// DefaultMaxAge はトークンの埋め込み期限に関係なく適用する保持期間です。
	DefaultMaxAge = 7 * 24 * time.Hour
)

// Store はセッショントークンとプロフィールを組で保持します。
// トークンとプロフィールは常に一緒に書き込まれ、一緒に削除されます。
type Store interface {
	TokenSource

	// Establish は認証APIの応答からトークンとプロフィールを保存します。
	Establish(resp LoginResponse) error
	// CurrentProfile は保存済みプロフィールを返します。トークンがない場合や壊れている場合は nil です。
	CurrentProfile() *Profile
	// Revoke はトークンとプロフィールを削除します。セッションがなくてもエラーになりません。
	Revoke() error
}

// MemoryStore はプロセス内で完結する Store です。
// テストや HTTP 以外の呼び出し元が独立したセッションを持つために使います。
type MemoryStore struct {
	mu      sync.RWMutex
	token   string
	profile string
}

// NewMemoryStore は空の MemoryStore を作成します。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Establish は応答を検証し、トークンとプロフィールを同じロックの中で書き込みます。
func (s *MemoryStore) Establish(resp LoginResponse) error {
	profile, err := composeProfile(resp)
	if err != nil {
		return err
	}
	encoded, err := encodeProfile(profile)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = resp.Token
	s.profile = encoded
	return nil
}

// CurrentToken は保存済みトークンを返します。プロフィールと揃っていない場合は返しません。
func (s *MemoryStore) CurrentToken() (string, bool) {
	token, _, ok := s.load()
	return token, ok
}

// CurrentProfile は保存済みプロフィールを返します。
func (s *MemoryStore) CurrentProfile() *Profile {
	_, profile, _ := s.load()
	return profile
}

// Revoke はトークンとプロフィールを削除します。
func (s *MemoryStore) Revoke() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.profile = ""
	return nil
}

func (s *MemoryStore) load() (string, *Profile, bool) {
	s.mu.RLock()
	token, raw := s.token, s.profile
	s.mu.RUnlock()
	return paired(token, raw)
}

// paired はトークンとプロフィールが両方そろって読める場合だけ値を返します。
// 片方だけ残っている状態はセッションなしとみなします。
func paired(token, rawProfile string) (string, *Profile, bool) {
	if token == "" || rawProfile == "" {
		return "", nil, false
	}
	profile, err := decodeProfile(rawProfile)
	if err != nil {
		return "", nil, false
	}
	return token, profile, true
}
