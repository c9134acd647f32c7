package seat

import (
	"context"
	"time"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/transaction"
)

// ListFilter は座席一覧の絞り込み条件
type ListFilter struct {
	Floor    *int
	FreeOnly bool
}

// Repository は座席リポジトリのインターフェース
type Repository interface {
	// Provision は座席を一括登録する（既存IDは無視される）
	Provision(ctx context.Context, seats []*Seat) (int, error)

	// List は座席一覧をフロア・座席番号順で取得する
	List(ctx context.Context, filter ListFilter) ([]*Seat, error)

	// GetForUpdate は座席を行ロック付きで取得する（トランザクション必須）
	// ロックはトランザクション終了まで保持される
	GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*Seat, error)

	// FindActiveByHolder は holder が HELD/OCCUPIED で保持している座席を取得する
	// tx が nil の場合はトランザクション外で読む
	FindActiveByHolder(ctx context.Context, tx transaction.Tx, holder string) (*Seat, error)

	// Update は座席の可変フィールドを書き込む（トランザクション必須）
	// 保持者の一意制約に違反した場合は ErrSeatConflict
	Update(ctx context.Context, tx transaction.Tx, s *Seat) error

	// ScanExpiredHeld は now 時点で期限切れの仮押さえを行ロック付きで取得する
	// 他トランザクションがロック中の行は飛ばす（トランザクション必須）
	// 取得件数は limit 件まで。残りは次回のスイープで処理する
	ScanExpiredHeld(ctx context.Context, tx transaction.Tx, now time.Time, limit int) ([]*Seat, error)

	// Flag は座席の flagged を立てる
	Flag(ctx context.Context, id string, now time.Time) error
}
