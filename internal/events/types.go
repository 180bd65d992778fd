// Package events はログイン・ログアウトなどのセッション監査イベントを非同期に記録します。
package events

import (
	"time"

	"github.com/google/uuid"
)

// Kind はイベントの種類を表します。
type Kind string

const (
	KindLogin       Kind = "login"
	KindLoginFailed Kind = "login_failed"
	KindLogout      Kind = "logout"
)

// Event はセッションに関する監査イベントです。
type Event struct {
	ID           string    `json:"id"`
	Kind         Kind      `json:"kind"`
	UserID       int64     `json:"userId,omitempty"`
	Username     string    `json:"username,omitempty"`
	Organization string    `json:"organization,omitempty"`
	ClientIP     string    `json:"clientIp,omitempty"`
	Detail       string    `json:"detail,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// NewEvent は ID と発生時刻を埋めたイベントを作成します。
func NewEvent(kind Kind) Event {
	return Event{
		ID:         uuid.NewString(),
		Kind:       kind,
		OccurredAt: time.Now().UTC(),
	}
}
