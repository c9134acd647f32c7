package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/identity"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/metrics"
)

// CachingResolver は識別子の解決結果を Redis にキャッシュする read-through の Resolver
// Redis が使えない場合は下位の Resolver に直接問い合わせる
// 見つからなかった結果はキャッシュしない
type CachingResolver struct {
	client  *redis.Client
	next    identity.Resolver
	ttl     time.Duration
	metrics *metrics.Metrics
}

func NewCachingResolver(client *redis.Client, next identity.Resolver, ttl time.Duration, m *metrics.Metrics) *CachingResolver {
	return &CachingResolver{client: client, next: next, ttl: ttl, metrics: m}
}

func (c *CachingResolver) Resolve(ctx context.Context, identifier string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(identifier))
	if normalized == "" {
		return "", identity.ErrIdentifierRequired
	}
	key := identityKey(normalized)

	userID, err := c.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		c.count("hit")
		return userID, nil
	case errors.Is(err, redis.Nil):
		c.count("miss")
	default:
		c.count("error")
		logger.Warn("識別子キャッシュの取得に失敗", zap.String("key", key), zap.Error(err))
	}

	userID, err = c.next.Resolve(ctx, normalized)
	if err != nil {
		return "", err
	}

	if err := c.client.Set(ctx, key, userID, c.ttl).Err(); err != nil {
		logger.Warn("識別子キャッシュの保存に失敗", zap.String("key", key), zap.Error(err))
	}
	return userID, nil
}

func (c *CachingResolver) count(result string) {
	if c.metrics != nil {
		c.metrics.IdentityCacheTotal.WithLabelValues(result).Inc()
	}
}

func identityKey(identifier string) string {
	return "identity:" + identifier
}

var _ identity.Resolver = (*CachingResolver)(nil)
