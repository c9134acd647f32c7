package seat

import "time"

// DelegatedEvent は代理予約が確定（コミット）したときに発行される
type DelegatedEvent struct {
	SeatID     string    `json:"seat_id"`
	SeatNumber string    `json:"seat_number"`
	Floor      int       `json:"floor"`
	BookedBy   string    `json:"booked_by"`
	Holder     string    `json:"holder"`
	Identifier string    `json:"identifier"`
	ExpiresAt  time.Time `json:"expires_at"`
	OccurredAt time.Time `json:"occurred_at"`
}
