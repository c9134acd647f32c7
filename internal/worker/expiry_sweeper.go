package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/metrics"
)

const sweepLockKey = "seat-expiry-sweep"

// Sweeper は期限切れの仮押さえを解放するインターフェース
type Sweeper interface {
	ExpireSweep(ctx context.Context) (int, error)
}

// Locker はインスタンス間でスイープが重ならないようにする
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(ctx context.Context) error) (bool, error)
}

// ExpirySweeper は一定間隔で期限切れの仮押さえを解放するワーカー
type ExpirySweeper struct {
	sweeper  Sweeper
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger

	running  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// SweeperOption は ExpirySweeper の任意設定
type SweeperOption func(*ExpirySweeper)

// WithLocker は分散ロックを設定する。lockTTL はスイープ1回の上限時間より長くする
func WithLocker(l Locker, lockTTL time.Duration) SweeperOption {
	return func(s *ExpirySweeper) {
		s.locker = l
		s.lockTTL = lockTTL
	}
}

func WithSweepMetrics(m *metrics.Metrics) SweeperOption {
	return func(s *ExpirySweeper) { s.metrics = m }
}

// NewExpirySweeper は新しいスイーパーを作成
func NewExpirySweeper(sweeper Sweeper, interval time.Duration, opts ...SweeperOption) *ExpirySweeper {
	s := &ExpirySweeper{
		sweeper:  sweeper,
		interval: interval,
		log:      logger.Named("sweeper"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start はスイーパーを開始する。ctx のキャンセルか Stop で終了するまでブロックする
func (s *ExpirySweeper) Start(ctx context.Context) {
	s.log.Info("期限切れ仮押さえスイーパー開始", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer close(s.doneCh)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("期限切れ仮押さえスイーパー停止（コンテキストキャンセル）")
			return
		case <-s.stopCh:
			s.log.Info("期限切れ仮押さえスイーパー停止（シグナル受信）")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop はスイーパーを停止し、実行中のスイープが終わるまで待つ
func (s *ExpirySweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// RunOnce はスイープを1回実行する
// 前回のスイープが終わっていない、または他のインスタンスが実行中なら何もしない
func (s *ExpirySweeper) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.record("skipped")
		s.log.Debug("前回のスイープが実行中のためスキップ")
		return
	}
	defer s.running.Store(false)

	var (
		released int
		swept    bool
	)
	sweep := func(ctx context.Context) error {
		swept = true
		var err error
		released, err = s.sweeper.ExpireSweep(ctx)
		return err
	}

	var err error
	if s.locker != nil {
		var acquired bool
		acquired, err = s.locker.TryWithLock(ctx, sweepLockKey, s.lockTTL, sweep)
		switch {
		case err == nil && !acquired:
			s.record("skipped")
			s.log.Debug("他のインスタンスがスイープ中のためスキップ")
			return
		case err != nil && !swept:
			// ロックが使えなくても SKIP LOCKED により二重解放は起きない
			s.log.Warn("スイープロックを取得できないためロックなしで実行", zap.Error(err))
			err = sweep(ctx)
		}
	} else {
		err = sweep(ctx)
	}

	if err != nil {
		s.record("failed")
		s.log.Error("期限切れ仮押さえの解放に失敗", zap.Error(err))
		return
	}

	s.record("success")
	if released > 0 {
		s.log.Info("期限切れ仮押さえを解放", zap.Int("count", released))
	} else {
		s.log.Debug("期限切れ仮押さえなし")
	}
}

func (s *ExpirySweeper) record(result string) {
	if s.metrics != nil {
		s.metrics.SweepRunsTotal.WithLabelValues(result).Inc()
	}
}
