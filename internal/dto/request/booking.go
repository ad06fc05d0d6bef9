package request

type StartCheckoutRequest struct {
	ShowtimeID string `json:"showtime_id" validate:"required"`
}

type SetFoodQtyRequest struct {
	ItemID   string `json:"item_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=0,lte=50"`
}
