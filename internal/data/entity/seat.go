package entity

type SeatType string

const (
	SeatTypeSilver   SeatType = "silver"
	SeatTypeGold     SeatType = "gold"
	SeatTypePlatinum SeatType = "platinum"
)

func (t SeatType) Valid() bool {
	switch t {
	case SeatTypeSilver, SeatTypeGold, SeatTypePlatinum:
		return true
	}
	return false
}

type Seat struct {
	ScreenID string   `db:"screen_id"`
	SeatID   string   `db:"seat_id"`     // A1, A2, B1, etc.
	Row      string   `db:"seat_row"`    // A, B, C, etc.
	Column   int      `db:"seat_column"` // 1, 2, 3, etc.
	Type     SeatType `db:"seat_type"`
	Price    int64    `db:"-"`
	Booked   bool     `db:"-"` // committed occupancy only, never a hold
}
