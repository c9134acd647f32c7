package handler

import (
	"context"

	"github.com/sanosuguru/go-seat-reservation/internal/application"
	"github.com/sanosuguru/go-seat-reservation/internal/domain/seat"
)

// SeatEngine は座席予約エンジンのインターフェース
type SeatEngine interface {
	ListSeats(ctx context.Context, filter seat.ListFilter) ([]*seat.Seat, error)
	MySeat(ctx context.Context, callerID string) (*seat.Seat, error)
	Reserve(ctx context.Context, input application.ReserveInput) (*seat.Seat, error)
	Confirm(ctx context.Context, seatID, callerID string) (*seat.Seat, error)
	Release(ctx context.Context, seatID, callerID string) (*seat.Seat, error)
	Report(ctx context.Context, seatID string) error
}

// Pinger は依存先の疎通確認を行う
type Pinger interface {
	Ping(ctx context.Context) error
}
