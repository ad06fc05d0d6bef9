package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ==================== UUID ====================

// bookingNamespace scopes derived booking IDs
var bookingNamespace = uuid.MustParse("6f1c2a9e-3b7d-4e52-9a0c-1d8e5f4b7a21")

func GenerateUUID() uuid.UUID {
	return uuid.New()
}

func ParseUUID(uuidStr string) (uuid.UUID, error) {
	return uuid.Parse(uuidStr)
}

// DeriveBookingID maps a payment attempt to exactly one booking ID
func DeriveBookingID(attemptID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(bookingNamespace, attemptID[:])
}

// ==================== ORDER ID ====================

// GenerateOrderID builds a human readable order code from a booking ID
// Format: BOOK-YYYYMMDD-XXXXXXXX
func GenerateOrderID(bookingID uuid.UUID, at time.Time) string {
	short := strings.ToUpper(strings.ReplaceAll(bookingID.String(), "-", "")[:8])
	return fmt.Sprintf("BOOK-%s-%s", at.Format("20060102"), short)
}
