package seat

import (
	"fmt"
	"time"
)

// Layout は1フロア分の座席の並びを表す
// 座席番号は Prefix に1始まりの連番を付けたもの（例: A-01, A-02）
type Layout struct {
	Floor  int
	Prefix string
	Count  int
}

// Seats はレイアウトから空席状態の座席を生成する。ID は保存時に採番される
func (l Layout) Seats(now time.Time) ([]*Seat, error) {
	if l.Floor < 0 || l.Count <= 0 || l.Count > 9999 {
		return nil, fmt.Errorf("%w: floor=%d count=%d", ErrInvalidLayout, l.Floor, l.Count)
	}
	width := len(fmt.Sprint(l.Count))
	if width < 2 {
		width = 2
	}
	seats := make([]*Seat, l.Count)
	for i := range seats {
		seats[i] = &Seat{
			SeatNumber: fmt.Sprintf("%s%0*d", l.Prefix, width, i+1),
			Floor:      l.Floor,
			Status:     StatusFree,
			UpdatedAt:  now,
		}
	}
	return seats, nil
}
