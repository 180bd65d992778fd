package session

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// LoginResponse は認証APIがログイン成功時に返すペイロードです。
type LoginResponse struct {
	Token        string `json:"token" validate:"required"`
	UserID       int64  `json:"user_id" validate:"gte=0"`
	Username     string `json:"username" validate:"required"`
	Role         string `json:"role" validate:"required"`
	Organization string `json:"organization" validate:"required"`
}

// UnmarshalJSON は user_id が欠けた応答を拒否します。0 は有効な ID として扱います。
func (r *LoginResponse) UnmarshalJSON(data []byte) error {
	type wire LoginResponse
	var w struct {
		wire
		UserID *int64 `json:"user_id"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.UserID == nil {
		return errors.New("user_id is missing")
	}
	*r = LoginResponse(w.wire)
	r.UserID = *w.UserID
	return nil
}

// Profile はトークンから導出される表示用のユーザー情報です。
type Profile struct {
	UserID         int64  `json:"user_id" validate:"gte=0"`
	Username       string `json:"username" validate:"required"`
	Role           string `json:"role" validate:"required"`
	Organization   string `json:"organization" validate:"required"`
	OrganizationID *int64 `json:"organization_id,omitempty"`
}

// composeProfile は応答とトークンのクレームからプロフィールを組み立てます。
// トークンが読めない場合は何も保存させないためエラーにします。
func composeProfile(resp LoginResponse) (*Profile, error) {
	if err := validate.Struct(resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	claims, err := DecodeClaims(resp.Token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &Profile{
		UserID:         resp.UserID,
		Username:       resp.Username,
		Role:           resp.Role,
		Organization:   resp.Organization,
		OrganizationID: claims.OrganizationID,
	}, nil
}

func encodeProfile(p *Profile) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decodeProfile は保存済みの JSON をスキーマ検証付きで復元します。
// 形が合わないものはすべて ErrStorageCorrupt として扱います。
func decodeProfile(raw string) (*Profile, error) {
	if raw == "" {
		return nil, ErrStorageCorrupt
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()

	type wire Profile
	var w struct {
		wire
		UserID *int64 `json:"user_id"`
	}
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrStorageCorrupt)
	}
	if w.UserID == nil {
		return nil, fmt.Errorf("%w: user_id is missing", ErrStorageCorrupt)
	}
	p := Profile(w.wire)
	p.UserID = *w.UserID
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageCorrupt, err)
	}
	return &p, nil
}
