package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/transaction"
)

const seatColumns = `id, seat_number, floor, status, holder, held_at, expires_at, flagged, updated_at`

type seatRow struct {
	ID         string     `db:"id"`
	SeatNumber string     `db:"seat_number"`
	Floor      int        `db:"floor"`
	Status     string     `db:"status"`
	Holder     *string    `db:"holder"`
	HeldAt     *time.Time `db:"held_at"`
	ExpiresAt  *time.Time `db:"expires_at"`
	Flagged    bool       `db:"flagged"`
	UpdatedAt  time.Time  `db:"updated_at"`
}

func (r *seatRow) toEntity() *seat.Seat {
	return &seat.Seat{
		ID: r.ID, SeatNumber: r.SeatNumber, Floor: r.Floor,
		Status: seat.Status(r.Status), Holder: r.Holder,
		HeldAt: r.HeldAt, ExpiresAt: r.ExpiresAt,
		Flagged: r.Flagged, UpdatedAt: r.UpdatedAt,
	}
}

func toEntities(rows []seatRow) []*seat.Seat {
	seats := make([]*seat.Seat, len(rows))
	for i := range rows {
		seats[i] = rows[i].toEntity()
	}
	return seats
}

type SeatRepository struct{ db *sqlx.DB }

func NewSeatRepository(db *sqlx.DB) *SeatRepository { return &SeatRepository{db: db} }

// Provision は座席を一括登録し、新規に作成した件数を返す
// ID または（階, 座席番号）が既に存在する座席は無視するので、同じ定義で何度実行してもよい
func (r *SeatRepository) Provision(ctx context.Context, seats []*seat.Seat) (int, error) {
	if len(seats) == 0 {
		return 0, nil
	}

	const batchSize = 1000
	created := 0
	for i := 0; i < len(seats); i += batchSize {
		end := i + batchSize
		if end > len(seats) {
			end = len(seats)
		}
		n, err := r.provisionBatch(ctx, seats[i:end])
		if err != nil {
			return created, err
		}
		created += n
	}
	return created, nil
}

func (r *SeatRepository) provisionBatch(ctx context.Context, seats []*seat.Seat) (int, error) {
	query := `INSERT INTO seats (id, seat_number, floor, status, updated_at) VALUES `
	args := make([]interface{}, 0, len(seats)*5)
	placeholders := make([]string, 0, len(seats))

	for i, s := range seats {
		if err := s.Validate(); err != nil {
			return 0, fmt.Errorf("座席 %s: %w", s.SeatNumber, err)
		}
		if s.ID == "" {
			s.ID = uuid.New().String()
		}
		base := i * 5
		placeholders = append(placeholders, fmt.Sprintf("($%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5))
		args = append(args, s.ID, s.SeatNumber, s.Floor, string(s.Status), s.UpdatedAt)
	}

	query += strings.Join(placeholders, ", ") + ` ON CONFLICT DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, mapError(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, mapError(err)
	}
	return int(n), nil
}

// List は座席を階・座席番号順に返す
func (r *SeatRepository) List(ctx context.Context, filter seat.ListFilter) ([]*seat.Seat, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Floor != nil {
		args = append(args, *filter.Floor)
		conds = append(conds, fmt.Sprintf("floor = $%d", len(args)))
	}
	if filter.FreeOnly {
		args = append(args, string(seat.StatusFree))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + seatColumns + ` FROM seats`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY floor, seat_number`

	var rows []seatRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err)
	}
	return toEntities(rows), nil
}

// GetForUpdate は行ロックを取得して座席を読む。ロックはトランザクション終了まで保持される
func (r *SeatRepository) GetForUpdate(ctx context.Context, tx transaction.Tx, id string) (*seat.Seat, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return nil, fmt.Errorf("%w: トランザクションが必要です", seat.ErrStoreUnavailable)
	}
	query := `SELECT ` + seatColumns + ` FROM seats WHERE id = $1 FOR UPDATE`
	var row seatRow
	if err := sqlxTx.GetContext(ctx, &row, query, id); err != nil {
		return nil, mapError(err)
	}
	return row.toEntity(), nil
}

// FindActiveByHolder は holder が保持中（HELD/OCCUPIED）の座席を返す
// tx が nil の場合はトランザクション外で読む
func (r *SeatRepository) FindActiveByHolder(ctx context.Context, tx transaction.Tx, holder string) (*seat.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE holder = $1 AND status IN ('HELD', 'OCCUPIED')`
	var row seatRow
	var err error
	if sqlxTx := UnwrapTx(tx); sqlxTx != nil {
		err = sqlxTx.GetContext(ctx, &row, query, holder)
	} else {
		err = r.db.GetContext(ctx, &row, query, holder)
	}
	if err != nil {
		return nil, mapError(err)
	}
	return row.toEntity(), nil
}

// Update は座席の状態を書き込む。flagged は Flag でのみ変更する
func (r *SeatRepository) Update(ctx context.Context, tx transaction.Tx, s *seat.Seat) error {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return fmt.Errorf("%w: トランザクションが必要です", seat.ErrStoreUnavailable)
	}
	query := `UPDATE seats SET status = $1, holder = $2, held_at = $3, expires_at = $4, updated_at = $5 WHERE id = $6`
	result, err := sqlxTx.ExecContext(ctx, query,
		string(s.Status), s.Holder, s.HeldAt, s.ExpiresAt, s.UpdatedAt, s.ID)
	if err != nil {
		return mapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if rows == 0 {
		return seat.ErrSeatNotFound
	}
	return nil
}

// ScanExpiredHeld は期限切れの仮押さえをロックして返す
// 他のトランザクションがロック中の行は読み飛ばす
func (r *SeatRepository) ScanExpiredHeld(ctx context.Context, tx transaction.Tx, now time.Time, limit int) ([]*seat.Seat, error) {
	sqlxTx := UnwrapTx(tx)
	if sqlxTx == nil {
		return nil, fmt.Errorf("%w: トランザクションが必要です", seat.ErrStoreUnavailable)
	}
	query := `SELECT ` + seatColumns + ` FROM seats WHERE status = 'HELD' AND expires_at < $1 ORDER BY expires_at LIMIT $2 FOR UPDATE SKIP LOCKED`
	var rows []seatRow
	if err := sqlxTx.SelectContext(ctx, &rows, query, now, limit); err != nil {
		return nil, mapError(err)
	}
	return toEntities(rows), nil
}

// Flag は座席に要確認フラグを立てる
func (r *SeatRepository) Flag(ctx context.Context, id string, now time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE seats SET flagged = TRUE, updated_at = $1 WHERE id = $2`, now, id)
	if err != nil {
		return mapError(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return mapError(err)
	}
	if rows == 0 {
		return seat.ErrSeatNotFound
	}
	return nil
}

var _ seat.Repository = (*SeatRepository)(nil)
