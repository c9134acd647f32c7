package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"

	"github.com/lib/pq"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
)

const (
	pqUniqueViolation  = "23505"
	pqCheckViolation   = "23514"
	pqLockNotAvailable = "55P03"
	pqQueryCanceled    = "57014"
	holderIndexName    = "seats_active_holder_key"
)

// mapError はドライバーのエラーをドメインのエラー種別に変換する
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return seat.ErrSeatNotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == pqUniqueViolation && pqErr.Constraint == holderIndexName:
			return seat.ErrSeatConflict
		case pqErr.Code == pqLockNotAvailable:
			return fmt.Errorf("%w: 行ロックの待ち時間を超過: %w", seat.ErrStoreUnavailable, err)
		case pqErr.Code == pqQueryCanceled:
			return fmt.Errorf("%w: クエリがキャンセルされました: %w", seat.ErrStoreUnavailable, err)
		case pqErr.Code == pqCheckViolation:
			return fmt.Errorf("%w: 座席の整合性制約に違反: %w", seat.ErrStoreUnavailable, err)
		}
		return fmt.Errorf("%w: %w", seat.ErrStoreUnavailable, err)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", seat.ErrStoreUnavailable, err)
	case errors.As(err, &netErr), errors.Is(err, sql.ErrConnDone), errors.Is(err, sql.ErrTxDone):
		return fmt.Errorf("%w: データベースに接続できません: %w", seat.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: %w", seat.ErrStoreUnavailable, err)
}
