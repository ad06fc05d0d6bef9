package entity

import (
	"github.com/google/uuid"
)

type CartLineKind string

const (
	CartLineSeat CartLineKind = "seat"
	CartLineFood CartLineKind = "food"
)

// CartLine is either a seat (quantity always 1) or a food item
type CartLine struct {
	Kind       CartLineKind `json:"kind"`
	SeatID     string       `json:"seat_id,omitempty"`
	SeatType   SeatType     `json:"seat_type,omitempty"`
	FoodItemID string       `json:"food_item_id,omitempty"`
	Name       string       `json:"name,omitempty"`
	UnitPrice  int64        `json:"unit_price"`
	Quantity   int          `json:"quantity"`
}

func (l CartLine) Amount() int64 {
	if l.Kind == CartLineSeat {
		return l.UnitPrice
	}
	return l.UnitPrice * int64(l.Quantity)
}

type CartTotals struct {
	SeatAmount  int64 `json:"seat_amount"`
	FoodAmount  int64 `json:"food_amount"`
	TotalAmount int64 `json:"total_amount"`
}

// ComputeTotals derives cart totals from lines; it is the only place totals come from
func ComputeTotals(lines []CartLine) CartTotals {
	var t CartTotals
	for _, l := range lines {
		switch l.Kind {
		case CartLineSeat:
			t.SeatAmount += l.Amount()
		case CartLineFood:
			t.FoodAmount += l.Amount()
		}
	}
	t.TotalAmount = t.SeatAmount + t.FoodAmount
	return t
}

type Cart struct {
	SessionID uuid.UUID   `json:"session_id"`
	Showtime  ShowtimeRef `json:"showtime"`
	Lines     []CartLine  `json:"lines"`
}

func (c *Cart) Totals() CartTotals {
	return ComputeTotals(c.Lines)
}

func (c *Cart) SeatIDs() []string {
	ids := make([]string, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l.Kind == CartLineSeat {
			ids = append(ids, l.SeatID)
		}
	}
	return ids
}

func (c *Cart) HasSeats() bool {
	for _, l := range c.Lines {
		if l.Kind == CartLineSeat {
			return true
		}
	}
	return false
}
