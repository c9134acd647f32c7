package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/metrics"
)

var (
	ErrLockNotAcquired = errors.New("ロックを取得できませんでした")
	ErrLockNotOwned    = errors.New("ロックの所有者ではありません")
)

// 所有者が一致する場合のみ削除する
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// DistributedLock は Redis を使用した分散ロック
type DistributedLock struct {
	manager *LockManager
	key     string
	value   string
}

// LockManager は分散ロックを管理する
// スイーパーが複数インスタンスで同時に走らないようにするために使う
type LockManager struct {
	client   *redis.Client
	metrics  *metrics.Metrics
	newToken func() string
}

func NewLockManager(client *redis.Client, m *metrics.Metrics) *LockManager {
	return &LockManager{
		client:   client,
		metrics:  m,
		newToken: func() string { return uuid.New().String() },
	}
}

// AcquireLock はロックを取得する。他の所有者がいれば ErrLockNotAcquired
func (m *LockManager) AcquireLock(ctx context.Context, key string, ttl time.Duration) (*DistributedLock, error) {
	start := time.Now()
	lockKey := fmt.Sprintf("lock:%s", key)
	lockValue := m.newToken()

	ok, err := m.client.SetNX(ctx, lockKey, lockValue, ttl).Result()
	if err != nil {
		m.observe("acquire", "failed", start)
		return nil, fmt.Errorf("ロック取得に失敗: %w", err)
	}
	if !ok {
		m.observe("acquire", "not_acquired", start)
		return nil, ErrLockNotAcquired
	}

	m.observe("acquire", "success", start)
	return &DistributedLock{manager: m, key: lockKey, value: lockValue}, nil
}

// Release はロックを解放する
func (l *DistributedLock) Release(ctx context.Context) error {
	start := time.Now()
	result, err := l.manager.client.Eval(ctx, releaseScript, []string{l.key}, l.value).Int()
	if err != nil {
		l.manager.observe("release", "failed", start)
		return fmt.Errorf("ロック解放に失敗: %w", err)
	}
	if result == 0 {
		l.manager.observe("release", "not_owned", start)
		return ErrLockNotOwned
	}
	l.manager.observe("release", "success", start)
	return nil
}

func (m *LockManager) observe(operation, status string, start time.Time) {
	if m.metrics == nil {
		return
	}
	m.metrics.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// TryWithLock はロックを取得できた場合だけ fn を実行する
// 他の所有者がいれば fn を実行せずに false を返す
func (m *LockManager) TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error) {
	lock, err := m.AcquireLock(ctx, key, ttl)
	if errors.Is(err, ErrLockNotAcquired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("ロックの解放に失敗", zap.String("key", lock.key), zap.Error(err))
		}
	}()
	return true, fn(ctx)
}
