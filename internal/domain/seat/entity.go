package seat

import "time"

// Status は座席の状態を表す
type Status string

const (
	StatusFree     Status = "FREE"
	StatusHeld     Status = "HELD"
	StatusOccupied Status = "OCCUPIED"
)

// DefaultHoldWindow は仮押さえの既定の有効期間
const DefaultHoldWindow = 5 * time.Minute

// Seat は座席エンティティを表す
// Status 以外の可変フィールド（Holder, HeldAt, ExpiresAt）は状態遷移メソッド経由でのみ変更する
type Seat struct {
	ID         string
	SeatNumber string
	Floor      int
	Status     Status
	Holder     *string
	HeldAt     *time.Time
	ExpiresAt  *time.Time
	Flagged    bool
	UpdatedAt  time.Time
}

// NewSeat は空席状態の座席を作成する
func NewSeat(id, seatNumber string, floor int) *Seat {
	return &Seat{
		ID:         id,
		SeatNumber: seatNumber,
		Floor:      floor,
		Status:     StatusFree,
		UpdatedAt:  time.Now(),
	}
}

// IsFree は座席が空席かを返す
func (s *Seat) IsFree() bool {
	return s.Status == StatusFree
}

// IsActive は座席が誰かに保持されているか（HELD または OCCUPIED）を返す
func (s *Seat) IsActive() bool {
	return s.Status == StatusHeld || s.Status == StatusOccupied
}

// IsHeldBy は userID が座席の保持者かを返す
func (s *Seat) IsHeldBy(userID string) bool {
	return s.Holder != nil && *s.Holder == userID
}

// IsExpired は仮押さえが now 時点で期限切れかを返す
func (s *Seat) IsExpired(now time.Time) bool {
	return s.Status == StatusHeld && s.ExpiresAt != nil && s.ExpiresAt.Before(now)
}

// Hold は座席を仮押さえ状態にする
func (s *Seat) Hold(holder string, now time.Time, window time.Duration) error {
	if s.Status != StatusFree {
		return ErrSeatUnavailable
	}
	if holder == "" {
		return ErrUserIDRequired
	}
	expiresAt := now.Add(window)
	s.Status = StatusHeld
	s.Holder = &holder
	s.HeldAt = &now
	s.ExpiresAt = &expiresAt
	s.UpdatedAt = now
	return nil
}

// Occupy は仮押さえ中の座席をチェックイン済みにする
// 保持者の不一致・期限切れ・HELD 以外はすべて ErrSeatUnavailable
func (s *Seat) Occupy(userID string, now time.Time) error {
	if s.Status != StatusHeld || !s.IsHeldBy(userID) {
		return ErrSeatUnavailable
	}
	if s.ExpiresAt == nil || !s.ExpiresAt.After(now) {
		return ErrSeatUnavailable
	}
	s.Status = StatusOccupied
	s.ExpiresAt = nil
	s.UpdatedAt = now
	return nil
}

// Vacate は保持者本人が座席を手放す（仮押さえのキャンセル・退席の両方）
func (s *Seat) Vacate(userID string, now time.Time) error {
	if !s.IsActive() || !s.IsHeldBy(userID) {
		return ErrSeatConflict
	}
	s.release(now)
	return nil
}

// Expire は期限切れの仮押さえを解放する。解放した場合 true を返す
func (s *Seat) Expire(now time.Time) bool {
	if !s.IsExpired(now) {
		return false
	}
	s.release(now)
	return true
}

// Flag は座席を要確認としてマークする。状態遷移は伴わない
func (s *Seat) Flag(now time.Time) {
	s.Flagged = true
	s.UpdatedAt = now
}

func (s *Seat) release(now time.Time) {
	s.Status = StatusFree
	s.Holder = nil
	s.HeldAt = nil
	s.ExpiresAt = nil
	s.UpdatedAt = now
}

// Clone は座席のディープコピーを返す
func (s *Seat) Clone() *Seat {
	c := *s
	if s.Holder != nil {
		h := *s.Holder
		c.Holder = &h
	}
	if s.HeldAt != nil {
		t := *s.HeldAt
		c.HeldAt = &t
	}
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// Validate は座席の検証を行う
func (s *Seat) Validate() error {
	if s.SeatNumber == "" {
		return ErrSeatNumberRequired
	}
	if s.Floor < 0 {
		return ErrInvalidFloor
	}
	switch s.Status {
	case StatusFree:
		if s.Holder != nil || s.ExpiresAt != nil {
			return ErrInconsistentState
		}
	case StatusHeld:
		if s.Holder == nil || s.ExpiresAt == nil {
			return ErrInconsistentState
		}
	case StatusOccupied:
		if s.Holder == nil || s.ExpiresAt != nil {
			return ErrInconsistentState
		}
	default:
		return ErrInconsistentState
	}
	return nil
}
