package entity

import (
	"time"

	"github.com/google/uuid"
)

type Hold struct {
	SessionID uuid.UUID   `json:"session_id"`
	SeatID    string      `json:"seat_id"`
	Showtime  ShowtimeRef `json:"showtime"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Expired reports whether the hold is no longer valid at now.
// A hold expiring exactly at now counts as expired.
func (h *Hold) Expired(now time.Time) bool {
	return !now.Before(h.ExpiresAt)
}
