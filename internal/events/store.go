package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	eventKeyPrefix = "session_event:"
	recentKey      = "session_events:recent"

	defaultRecentLimit = 200
)

// Store はイベントを Redis に保存します。
type Store struct {
	rdb         redis.Cmdable
	ttl         time.Duration
	recentLimit int64
}

// NewStore は Store を作成します。
func NewStore(rdb redis.Cmdable, ttl time.Duration) *Store {
	return &Store{
		rdb:         rdb,
		ttl:         ttl,
		recentLimit: defaultRecentLimit,
	}
}

// Get はイベントを取得します。存在しない場合は nil を返します。
func (s *Store) Get(ctx context.Context, id string) (*Event, error) {
	if id == "" {
		return nil, fmt.Errorf("id is required")
	}
	data, err := s.rdb.Get(ctx, eventKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, err
	}
	return &event, nil
}

// Append はイベントを保存し、最近のイベント一覧の先頭に追加します。
// 同じ ID のイベントは上書きされ、一覧に重複しません。
func (s *Store) Append(ctx context.Context, event *Event) error {
	if event == nil {
		return fmt.Errorf("event is nil")
	}
	if event.ID == "" {
		return fmt.Errorf("event.ID is required")
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	tx := s.rdb.TxPipeline()
	tx.Set(ctx, eventKey(event.ID), payload, s.ttl)
	tx.LRem(ctx, recentKey, 0, event.ID)
	tx.LPush(ctx, recentKey, event.ID)
	tx.LTrim(ctx, recentKey, 0, s.recentLimit-1)
	_, err = tx.Exec(ctx)
	return err
}

// Recent は新しい順に最大 limit 件のイベントを返します。期限切れのものは飛ばします。
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 || int64(limit) > s.recentLimit {
		limit = int(s.recentLimit)
	}
	ids, err := s.rdb.LRange(ctx, recentKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]Event, 0, len(ids))
	for _, id := range ids {
		event, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if event == nil {
			continue
		}
		events = append(events, *event)
	}
	return events, nil
}

func eventKey(id string) string {
	return eventKeyPrefix + id
}
