package entity

import (
	"fmt"
	"time"
)

// ShowtimeRef identifies one scheduled screening
type ShowtimeRef struct {
	PlaceID    string `json:"place_id" db:"place_id"`
	ScreenID   string `json:"screen_id" db:"screen_id"`
	ShowtimeID string `json:"showtime_id" db:"showtime_id"`
}

func (r ShowtimeRef) String() string {
	return fmt.Sprintf("%s/%s/%s", r.PlaceID, r.ScreenID, r.ShowtimeID)
}

func (r ShowtimeRef) IsZero() bool {
	return r.ShowtimeID == ""
}

// Showtime is read-only scheduling context; the price table never changes
// once the showtime is published.
type Showtime struct {
	Ref        ShowtimeRef
	MovieID    string             `db:"movie_id"`
	MovieTitle string             `db:"movie_title"`
	ScreenName string             `db:"screen_name"`
	ScreenType string             `db:"screen_type"` // 2D, 3D, IMAX
	Language   string             `db:"language"`
	StartsAt   time.Time          `db:"starts_at"`
	Prices     map[SeatType]int64 `db:"-"`
}

func (s *Showtime) PriceFor(t SeatType) (int64, bool) {
	p, ok := s.Prices[t]
	return p, ok
}
