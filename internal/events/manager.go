package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/hibiken/asynq"
)

const (
	taskTypeSessionEvent = "session:event"
	queueName            = "events"
)

// Manager はイベントのキュー投入と保存ワーカーを担います。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  *Store
	logger *log.Logger
}

// NewManager は Manager を初期化します。
func NewManager(redisURL string, store *Store, logger *log.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("store is nil")
	}
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueName: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client: client,
		server: server,
		mux:    mux,
		store:  store,
		logger: logger,
	}
	mux.HandleFunc(taskTypeSessionEvent, manager.handleEventTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && err != asynq.ErrServerClosed {
			m.logf("asynq server stopped with error: %v", err)
		}
	}()
}

// Shutdown はサーバーとクライアントを閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.server.Shutdown()
	return m.client.Close()
}

// Publish はイベントをキューに投入します。
func (m *Manager) Publish(ctx context.Context, event Event) error {
	if event.ID == "" {
		return fmt.Errorf("event.ID is required")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	task := asynq.NewTask(taskTypeSessionEvent, body, asynq.Queue(queueName))
	if _, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(3)); err != nil {
		return err
	}
	return nil
}

// Recent は保存済みのイベントを新しい順に返します。
func (m *Manager) Recent(ctx context.Context, limit int) ([]Event, error) {
	return m.store.Recent(ctx, limit)
}

func (m *Manager) handleEventTask(ctx context.Context, task *asynq.Task) error {
	return handleEventPayload(ctx, m.store, task.Payload())
}

func handleEventPayload(ctx context.Context, store *Store, payload []byte) error {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		// 壊れたペイロードは再試行しても直らない
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if event.ID == "" {
		return fmt.Errorf("missing id in payload: %w", asynq.SkipRetry)
	}
	return store.Append(ctx, &event)
}

func (m *Manager) logf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	} else {
		log.Printf(format, args...)
	}
}
