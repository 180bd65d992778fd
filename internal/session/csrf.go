package session

import (
	"crypto/rand"
	"encoding/hex"
)

// CSRFKey はプロフィールと同じセッションに CSRF トークンを保存するキーです。
const CSRFKey = "csrf_token"

// CSRFToken はログイン時に発行した CSRF トークンを返します。
// トークンとプロフィールが揃っていない場合は返しません。
func (s *CookieStore) CSRFToken() (string, bool) {
	if _, _, ok := s.load(); !ok {
		return "", false
	}
	sess, err := s.profileSession()
	if err != nil {
		return "", false
	}
	token, _ := sess.Get(CSRFKey).(string)
	return token, token != ""
}

func generateCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
