package session

import "errors"

var (
	// ErrMalformedResponse は認証APIの応答にトークンやプロフィール項目が欠けている場合に返ります。
	ErrMalformedResponse = errors.New("session: malformed credential response")
	// ErrTokenDecode はトークンのクレームを読み取れない場合に返ります。
	ErrTokenDecode = errors.New("session: token decode failure")
	// ErrStorageCorrupt は保存済みプロフィールがスキーマに合わない場合に返ります。
	ErrStorageCorrupt = errors.New("session: stored profile is corrupt")
)
