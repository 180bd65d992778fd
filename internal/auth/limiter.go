package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// LimitPolicy はログイン失敗の制限値です。
type LimitPolicy struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

// DefaultLimitPolicy は 15 分間に 5 回失敗すると 10 分ロックします。
func DefaultLimitPolicy() LimitPolicy {
	return LimitPolicy{
		MaxAttempts:  5,
		Window:       15 * time.Minute,
		LockDuration: 10 * time.Minute,
	}
}

func (p LimitPolicy) withDefaults() LimitPolicy {
	def := DefaultLimitPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.Window <= 0 {
		p.Window = def.Window
	}
	if p.LockDuration <= 0 {
		p.LockDuration = def.LockDuration
	}
	return p
}

// Limiter はクライアントごとのログイン失敗回数を管理します。
type Limiter interface {
	// Check はロック中であれば残り時間を返します。
	Check(ctx context.Context, key string) (time.Duration, error)
	// RecordFailure は失敗を記録し、ロックまでの残り回数を返します。
	RecordFailure(ctx context.Context, key string) (int, error)
	// Reset は記録を消去します。
	Reset(ctx context.Context, key string) error
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// MemoryLimiter はプロセス内で失敗回数を保持する Limiter です。
type MemoryLimiter struct {
	policy   LimitPolicy
	lock     sync.Mutex
	attempts map[string]*attemptState
	now      func() time.Time
}

// NewMemoryLimiter は MemoryLimiter を作成します。
func NewMemoryLimiter(policy LimitPolicy) *MemoryLimiter {
	return &MemoryLimiter{
		policy:   policy.withDefaults(),
		attempts: make(map[string]*attemptState),
		now:      time.Now,
	}
}

// Check はロック中であれば残り時間を返します。
func (l *MemoryLimiter) Check(_ context.Context, key string) (time.Duration, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	state, ok := l.attempts[key]
	if !ok {
		return 0, nil
	}
	now := l.now()
	if now.After(state.lockedUntil) {
		return 0, nil
	}
	return state.lockedUntil.Sub(now), nil
}

// RecordFailure は失敗を記録します。
func (l *MemoryLimiter) RecordFailure(_ context.Context, key string) (int, error) {
	l.lock.Lock()
	defer l.lock.Unlock()

	now := l.now()
	state, ok := l.attempts[key]
	if !ok || now.Sub(state.firstAttempt) > l.policy.Window {
		state = &attemptState{firstAttempt: now}
		l.attempts[key] = state
	}

	state.count++
	if state.count >= l.policy.MaxAttempts {
		state.lockedUntil = now.Add(l.policy.LockDuration)
		state.count = l.policy.MaxAttempts
	}

	remaining := l.policy.MaxAttempts - state.count
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// Reset は記録を消去します。
func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.attempts, key)
	return nil
}

const (
	failureKeyPrefix = "login_fail:"
	lockKeyPrefix    = "login_lock:"
)

// RedisLimiter は複数インスタンスで失敗回数を共有する Limiter です。
type RedisLimiter struct {
	rdb    redis.Cmdable
	policy LimitPolicy
}

// NewRedisLimiter は RedisLimiter を作成します。
func NewRedisLimiter(rdb redis.Cmdable, policy LimitPolicy) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, policy: policy.withDefaults()}
}

// Check はロックキーの残り TTL を返します。
func (l *RedisLimiter) Check(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := l.rdb.PTTL(ctx, lockKeyPrefix+key).Result()
	if err != nil {
		return 0, err
	}
	// キーなし(-2)や TTL なし(-1)はロックしていない
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// RecordFailure は失敗回数を加算し、上限に達したらロックキーを作成します。
func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) (int, error) {
	failKey := failureKeyPrefix + key

	n, err := l.rdb.Incr(ctx, failKey).Result()
	if err != nil {
		return 0, err
	}
	// 最初の失敗でウィンドウを開始する
	if n == 1 {
		if err := l.rdb.Expire(ctx, failKey, l.policy.Window).Err(); err != nil {
			return 0, err
		}
	}

	count := int(n)
	if count >= l.policy.MaxAttempts {
		pipe := l.rdb.TxPipeline()
		pipe.Set(ctx, lockKeyPrefix+key, count, l.policy.LockDuration)
		pipe.Del(ctx, failKey)
		if _, err := pipe.Exec(ctx); err != nil {
			return 0, err
		}
		return 0, nil
	}
	return l.policy.MaxAttempts - count, nil
}

// Reset は失敗回数とロックを削除します。
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, failureKeyPrefix+key, lockKeyPrefix+key).Err()
}
