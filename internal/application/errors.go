package application

import (
	"errors"
	"fmt"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/identity"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
)

// knownErrors はエンジンがそのまま呼び出し元に返すエラー
var knownErrors = []error{
	seat.ErrSeatNotFound,
	seat.ErrSeatUnavailable,
	seat.ErrSeatConflict,
	seat.ErrStoreUnavailable,
	seat.ErrSeatIDRequired,
	seat.ErrUserIDRequired,
	identity.ErrIdentityNotFound,
	identity.ErrIdentifierRequired,
}

// storeError は既知のエラー以外をすべて ErrStoreUnavailable でラップする
func storeError(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range knownErrors {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", seat.ErrStoreUnavailable, err)
}

// ResultLabel はエラーをメトリクス用の結果ラベルに変換する
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, seat.ErrSeatNotFound):
		return "not_found"
	case errors.Is(err, seat.ErrSeatUnavailable):
		return "unavailable"
	case errors.Is(err, seat.ErrSeatConflict):
		return "conflict"
	case errors.Is(err, identity.ErrIdentityNotFound):
		return "identity_not_found"
	case errors.Is(err, seat.ErrSeatIDRequired),
		errors.Is(err, seat.ErrUserIDRequired),
		errors.Is(err, identity.ErrIdentifierRequired):
		return "invalid"
	default:
		return "store_unavailable"
	}
}
