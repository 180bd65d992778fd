package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/portal-edge/internal/session"
)

const maxResponseBytes = 1 << 20

// ErrUpstreamUnavailable は認証APIに到達できない場合に返ります。
var ErrUpstreamUnavailable = errors.New("auth: authentication api unavailable")

// Credential はログインフォームから送られる資格情報です。保存はしません。
type Credential struct {
	OrganizationCode string `json:"organization_code"`
	Username         string `json:"username"`
	Password         string `json:"password"`
}

// RejectedError は認証APIが資格情報を拒否したことを表します。
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("auth: rejected (%d): %s", e.Status, e.Message)
}

// Authenticator は資格情報をリモートの認証APIで検証します。
type Authenticator interface {
	Authenticate(ctx context.Context, cred Credential) (*session.LoginResponse, error)
}

// RemoteClient は認証APIの /auth/login を呼び出します。
type RemoteClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteClient は RemoteClient を作成します。
func NewRemoteClient(baseURL string, timeout time.Duration) *RemoteClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Authenticate は資格情報を送信し、成功時の応答を返します。
func (c *RemoteClient) Authenticate(ctx context.Context, cred Credential) (*session.LoginResponse, error) {
	body, err := json.Marshal(cred)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
		}
		return nil, &RejectedError{Status: resp.StatusCode, Message: rejectionMessage(data)}
	}

	var out session.LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrMalformedResponse, err)
	}
	return &out, nil
}

// rejectionMessage は message、error の順でエラーメッセージを取り出します。
func rejectionMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return "ログインに失敗しました"
}
