package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/identity"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-seat-reservation/internal/pkg/metrics"
)

// DefaultSweepBatchSize は1回のスイープで解放する仮押さえの上限
const DefaultSweepBatchSize = 500

const (
	opReserve = "reserve"
	opConfirm = "confirm"
	opRelease = "release"
	opReport  = "report"
	opSweep   = "sweep"
)

// Notifier は代理予約の確定を外部に通知する
// 配信保証はベストエフォートで、失敗しても座席の状態遷移には影響しない
type Notifier interface {
	NotifyDelegated(ctx context.Context, ev seat.DelegatedEvent) error
}

// ReservationEngine は座席の状態遷移（FREE → HELD → OCCUPIED → FREE）を管理する
// 状態を変更する操作はすべて1座席・1トランザクションで行い、行ロック下で最新の状態を読み直す
type ReservationEngine struct {
	txManager  transaction.Manager
	seatRepo   seat.Repository
	resolver   identity.Resolver
	notifier   Notifier
	metrics    *metrics.Metrics
	holdWindow time.Duration
	sweepBatch int
	now        func() time.Time
}

// EngineOption は ReservationEngine の任意設定
type EngineOption func(*ReservationEngine)

// WithNotifier は代理予約の通知先を設定する
func WithNotifier(n Notifier) EngineOption {
	return func(e *ReservationEngine) { e.notifier = n }
}

// WithMetrics はメトリクスの記録先を設定する
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *ReservationEngine) { e.metrics = m }
}

// WithSweepBatchSize は1回のスイープで解放する件数の上限を設定する
func WithSweepBatchSize(n int) EngineOption {
	return func(e *ReservationEngine) {
		if n > 0 {
			e.sweepBatch = n
		}
	}
}

// WithClock は現在時刻の取得方法を差し替える（テスト用）
func WithClock(now func() time.Time) EngineOption {
	return func(e *ReservationEngine) { e.now = now }
}

func NewReservationEngine(tm transaction.Manager, sr seat.Repository, resolver identity.Resolver, holdWindow time.Duration, opts ...EngineOption) *ReservationEngine {
	if holdWindow <= 0 {
		holdWindow = seat.DefaultHoldWindow
	}
	e := &ReservationEngine{
		txManager:  tm,
		seatRepo:   sr,
		resolver:   resolver,
		holdWindow: holdWindow,
		sweepBatch: DefaultSweepBatchSize,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HoldWindow は仮押さえの有効期間を返す
func (e *ReservationEngine) HoldWindow() time.Duration {
	return e.holdWindow
}

type ReserveInput struct {
	SeatID   string
	CallerID string
	// DelegateIdentifier が空でなければ、解決したユーザーのために座席を仮押さえする
	DelegateIdentifier string
}

// ListSeats は座席一覧を取得する
func (e *ReservationEngine) ListSeats(ctx context.Context, filter seat.ListFilter) ([]*seat.Seat, error) {
	seats, err := e.seatRepo.List(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	return seats, nil
}

// MySeat は呼び出し元が保持している座席を返す。なければ ErrSeatNotFound
func (e *ReservationEngine) MySeat(ctx context.Context, callerID string) (*seat.Seat, error) {
	if callerID == "" {
		return nil, seat.ErrUserIDRequired
	}
	s, err := e.seatRepo.FindActiveByHolder(ctx, nil, callerID)
	if err != nil {
		return nil, storeError(err)
	}
	return s, nil
}

// Reserve は空席を仮押さえする
// 代理予約の場合、識別子の解決はトランザクション開始前に行う（ロック保持中に外部呼び出しをしない）
func (e *ReservationEngine) Reserve(ctx context.Context, input ReserveInput) (s *seat.Seat, err error) {
	start := time.Now()
	defer func() { e.observe(opReserve, start, err) }()

	if input.SeatID == "" {
		return nil, seat.ErrSeatIDRequired
	}
	if input.CallerID == "" {
		return nil, seat.ErrUserIDRequired
	}

	target := input.CallerID
	delegated := input.DelegateIdentifier != ""
	if delegated {
		target, err = e.resolveDelegate(ctx, input.DelegateIdentifier)
		if err != nil {
			return nil, err
		}
	}

	s, err = e.mutate(ctx, input.SeatID, func(tx transaction.Tx, s *seat.Seat, now time.Time) error {
		if !s.IsFree() {
			return seat.ErrSeatUnavailable
		}
		// 一意制約が最終的な保証だが、書き込み前に検出できるものはここで弾く
		active, err := e.seatRepo.FindActiveByHolder(ctx, tx, target)
		switch {
		case err == nil && active.ID != s.ID:
			return seat.ErrSeatConflict
		case err != nil && !errors.Is(err, seat.ErrSeatNotFound):
			return err
		}
		return s.Hold(target, now, e.holdWindow)
	})
	if err != nil {
		return nil, err
	}

	if delegated {
		e.notifyDelegated(ctx, s, input)
	}
	return s, nil
}

// Confirm は仮押さえ中の座席をチェックイン済みにする
// 期限切れの仮押さえは確定できない（解放はスイーパーに任せる）
func (e *ReservationEngine) Confirm(ctx context.Context, seatID, callerID string) (s *seat.Seat, err error) {
	start := time.Now()
	defer func() { e.observe(opConfirm, start, err) }()

	if seatID == "" {
		return nil, seat.ErrSeatIDRequired
	}
	if callerID == "" {
		return nil, seat.ErrUserIDRequired
	}

	s, err = e.mutate(ctx, seatID, func(_ transaction.Tx, s *seat.Seat, now time.Time) error {
		return s.Occupy(callerID, now)
	})
	if errors.Is(err, seat.ErrSeatNotFound) {
		return nil, seat.ErrSeatUnavailable
	}
	return s, err
}

// Release は保持者本人が座席を手放す（仮押さえのキャンセル・退席）
func (e *ReservationEngine) Release(ctx context.Context, seatID, callerID string) (s *seat.Seat, err error) {
	start := time.Now()
	defer func() { e.observe(opRelease, start, err) }()

	if seatID == "" {
		return nil, seat.ErrSeatIDRequired
	}
	if callerID == "" {
		return nil, seat.ErrUserIDRequired
	}

	s, err = e.mutate(ctx, seatID, func(_ transaction.Tx, s *seat.Seat, now time.Time) error {
		return s.Vacate(callerID, now)
	})
	if errors.Is(err, seat.ErrSeatNotFound) {
		return nil, seat.ErrSeatConflict
	}
	return s, err
}

// Report は座席に要確認フラグを立てる。状態は変えない
func (e *ReservationEngine) Report(ctx context.Context, seatID string) (err error) {
	start := time.Now()
	defer func() { e.observe(opReport, start, err) }()

	if seatID == "" {
		return seat.ErrSeatIDRequired
	}
	if err := e.seatRepo.Flag(ctx, seatID, e.now()); err != nil {
		return storeError(err)
	}
	return nil
}

// ExpireSweep は期限切れの仮押さえをまとめて解放し、解放した件数を返す
// 他のトランザクションがロック中の行と上限を超えた分は次回に回すため、並行実行しても二重に適用されない
func (e *ReservationEngine) ExpireSweep(ctx context.Context) (released int, err error) {
	start := time.Now()
	defer func() { e.observe(opSweep, start, err) }()

	tx, err := e.txManager.Begin(ctx)
	if err != nil {
		return 0, storeError(err)
	}
	defer tx.Rollback()

	now := e.now()
	expired, err := e.seatRepo.ScanExpiredHeld(ctx, tx, now, e.sweepBatch)
	if err != nil {
		return 0, storeError(err)
	}

	for _, s := range expired {
		if !s.Expire(now) {
			continue
		}
		if err := e.seatRepo.Update(ctx, tx, s); err != nil {
			return 0, storeError(err)
		}
		released++
	}

	if err := tx.Commit(); err != nil {
		return 0, storeError(err)
	}

	if e.metrics != nil && released > 0 {
		e.metrics.SweepReleasedTotal.Add(float64(released))
	}
	return released, nil
}

// mutate は1座席分の read-modify-write を1トランザクションで行う
// apply が失敗した場合は何も書かずにロールバックする
func (e *ReservationEngine) mutate(ctx context.Context, seatID string, apply func(tx transaction.Tx, s *seat.Seat, now time.Time) error) (*seat.Seat, error) {
	tx, err := e.txManager.Begin(ctx)
	if err != nil {
		return nil, storeError(err)
	}
	defer tx.Rollback()

	s, err := e.seatRepo.GetForUpdate(ctx, tx, seatID)
	if err != nil {
		return nil, storeError(err)
	}

	if err := apply(tx, s, e.now()); err != nil {
		return nil, storeError(err)
	}

	if err := e.seatRepo.Update(ctx, tx, s); err != nil {
		return nil, storeError(err)
	}

	if err := tx.Commit(); err != nil {
		return nil, storeError(err)
	}
	return s, nil
}

func (e *ReservationEngine) resolveDelegate(ctx context.Context, identifier string) (string, error) {
	if e.resolver == nil {
		return "", identity.ErrIdentityNotFound
	}
	userID, err := e.resolver.Resolve(ctx, identifier)
	if err != nil {
		if errors.Is(err, identity.ErrIdentityNotFound) || errors.Is(err, identity.ErrIdentifierRequired) {
			return "", err
		}
		return "", fmt.Errorf("%w: 識別子の解決に失敗: %w", seat.ErrStoreUnavailable, err)
	}
	if userID == "" {
		return "", identity.ErrIdentityNotFound
	}
	return userID, nil
}

func (e *ReservationEngine) notifyDelegated(ctx context.Context, s *seat.Seat, input ReserveInput) {
	if e.notifier == nil {
		return
	}
	ev := seat.DelegatedEvent{
		SeatID:     s.ID,
		SeatNumber: s.SeatNumber,
		Floor:      s.Floor,
		BookedBy:   input.CallerID,
		Holder:     *s.Holder,
		Identifier: input.DelegateIdentifier,
		OccurredAt: e.now(),
	}
	if s.ExpiresAt != nil {
		ev.ExpiresAt = *s.ExpiresAt
	}
	if err := e.notifier.NotifyDelegated(ctx, ev); err != nil {
		logger.Warn("代理予約の通知に失敗",
			zap.String("seat_id", s.ID),
			zap.String("booked_by", input.CallerID),
			zap.Error(err),
		)
	}
}

// observe はメトリクスだけを記録する。エラーのログは呼び出し元（HTTP エラーハンドラー、スイーパー）が出す
func (e *ReservationEngine) observe(op string, start time.Time, err error) {
	if e.metrics == nil {
		return
	}
	e.metrics.SeatOperationsTotal.WithLabelValues(op, ResultLabel(err)).Inc()
	e.metrics.SeatOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
