package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/identity"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/metrics"
)

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, identifier string) (string, error) {
	args := m.Called(ctx, identifier)
	return args.String(0), args.Error(1)
}

func setupCachingResolver() (*CachingResolver, redismock.ClientMock, *MockResolver, *metrics.Metrics) {
	client, redisMock := redismock.NewClientMock()
	next := new(MockResolver)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	return NewCachingResolver(client, next, 10*time.Minute, m), redisMock, next, m
}

func TestCachingResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("キャッシュヒット時は下位に問い合わせない", func(t *testing.T) {
		r, redisMock, next, m := setupCachingResolver()
		redisMock.ExpectGet("identity:bob@example.com").SetVal("bob")

		id, err := r.Resolve(ctx, "Bob@Example.com")

		require.NoError(t, err)
		assert.Equal(t, "bob", id)
		next.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.IdentityCacheTotal.WithLabelValues("hit")))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("キャッシュミス時は解決して保存する", func(t *testing.T) {
		r, redisMock, next, m := setupCachingResolver()
		redisMock.ExpectGet("identity:bob@example.com").RedisNil()
		next.On("Resolve", mock.Anything, "bob@example.com").Return("bob", nil)
		redisMock.ExpectSet("identity:bob@example.com", "bob", 10*time.Minute).SetVal("OK")

		id, err := r.Resolve(ctx, "bob@example.com")

		require.NoError(t, err)
		assert.Equal(t, "bob", id)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.IdentityCacheTotal.WithLabelValues("miss")))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("見つからない結果はキャッシュしない", func(t *testing.T) {
		r, redisMock, next, _ := setupCachingResolver()
		redisMock.ExpectGet("identity:ghost@example.com").RedisNil()
		next.On("Resolve", mock.Anything, "ghost@example.com").Return("", identity.ErrIdentityNotFound)

		_, err := r.Resolve(ctx, "ghost@example.com")

		assert.ErrorIs(t, err, identity.ErrIdentityNotFound)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("Redis 障害時も下位で解決できる", func(t *testing.T) {
		r, redisMock, next, m := setupCachingResolver()
		redisMock.ExpectGet("identity:bob@example.com").SetErr(errors.New("connection refused"))
		next.On("Resolve", mock.Anything, "bob@example.com").Return("bob", nil)
		redisMock.ExpectSet("identity:bob@example.com", "bob", 10*time.Minute).SetErr(errors.New("connection refused"))

		id, err := r.Resolve(ctx, "bob@example.com")

		require.NoError(t, err)
		assert.Equal(t, "bob", id)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.IdentityCacheTotal.WithLabelValues("error")))
	})

	t.Run("空の識別子はエラー", func(t *testing.T) {
		r, _, _, _ := setupCachingResolver()
		_, err := r.Resolve(ctx, "  ")
		assert.ErrorIs(t, err, identity.ErrIdentifierRequired)
	})
}
