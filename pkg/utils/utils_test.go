package utils

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestDeriveBookingID(t *testing.T) {
	attempt := uuid.New()

	assert.Equal(t, DeriveBookingID(attempt), DeriveBookingID(attempt))
	assert.NotEqual(t, DeriveBookingID(attempt), DeriveBookingID(uuid.New()))
	assert.NotEqual(t, attempt, DeriveBookingID(attempt))
}

func TestGenerateOrderID(t *testing.T) {
	id := uuid.MustParse("0a1b2c3d-4e5f-6789-abcd-ef0123456789")
	at := time.Date(2026, 10, 20, 18, 30, 0, 0, time.UTC)

	assert.Equal(t, "BOOK-20261020-0A1B2C3D", GenerateOrderID(id, at))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(54000), ToMinorUnits(540, 100))
	assert.Equal(t, int64(540), ToMinorUnits(540, 0))
}

func TestValidateStruct(t *testing.T) {
	type foodReq struct {
		ItemID   string `json:"item_id" validate:"required"`
		Quantity int    `json:"quantity" validate:"gte=0,lte=50"`
		Page     int    `validate:"min=1"`
	}

	assert.Nil(t, ValidateStruct(foodReq{ItemID: "popcorn", Quantity: 2, Page: 1}))

	errs := ValidateStruct(foodReq{Quantity: 51})
	assert.Equal(t, map[string]string{
		"item_id":  "This field is required",
		"quantity": "Must be at most 50",
		"Page":     "Must be at least 1",
	}, errs)
}
