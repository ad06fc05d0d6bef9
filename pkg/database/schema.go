package database

import (
	"context"
	"fmt"
)

// schema is applied on boot; every statement is idempotent
var schema = []string{
	`CREATE TABLE IF NOT EXISTS showtimes (
		id           TEXT PRIMARY KEY,
		place_id     TEXT NOT NULL,
		screen_id    TEXT NOT NULL,
		movie_id     TEXT NOT NULL,
		movie_title  TEXT NOT NULL,
		screen_name  TEXT NOT NULL,
		screen_type  TEXT NOT NULL DEFAULT '2D',
		language     TEXT NOT NULL DEFAULT '',
		starts_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS showtime_prices (
		showtime_id  TEXT NOT NULL REFERENCES showtimes(id),
		seat_type    TEXT NOT NULL,
		price        BIGINT NOT NULL CHECK (price >= 0),
		PRIMARY KEY (showtime_id, seat_type)
	)`,
	`CREATE TABLE IF NOT EXISTS seats (
		screen_id    TEXT NOT NULL,
		seat_id      TEXT NOT NULL,
		seat_row     TEXT NOT NULL,
		seat_column  INT NOT NULL,
		seat_type    TEXT NOT NULL,
		PRIMARY KEY (screen_id, seat_id),
		UNIQUE (screen_id, seat_row, seat_column)
	)`,
	`CREATE TABLE IF NOT EXISTS seat_occupancy (
		showtime_id  TEXT NOT NULL,
		screen_id    TEXT NOT NULL,
		seat_id      TEXT NOT NULL,
		booked       BOOLEAN NOT NULL DEFAULT TRUE,
		booking_id   UUID,
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (showtime_id, seat_id)
	)`,
	`CREATE TABLE IF NOT EXISTS food_items (
		id           TEXT PRIMARY KEY,
		name         TEXT NOT NULL,
		price        BIGINT NOT NULL CHECK (price >= 0),
		is_active    BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id           UUID PRIMARY KEY,
		order_id     TEXT NOT NULL UNIQUE,
		session_id   UUID NOT NULL,
		user_id      TEXT NOT NULL,
		attempt_id   UUID NOT NULL UNIQUE,
		place_id     TEXT NOT NULL,
		screen_id    TEXT NOT NULL,
		showtime_id  TEXT NOT NULL,
		seat_amount  BIGINT NOT NULL,
		food_amount  BIGINT NOT NULL,
		total_amount BIGINT NOT NULL,
		status       TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user_created ON bookings (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS booking_seats (
		booking_id   UUID NOT NULL REFERENCES bookings(id),
		showtime_id  TEXT NOT NULL,
		seat_id      TEXT NOT NULL,
		seat_type    TEXT NOT NULL,
		price        BIGINT NOT NULL,
		PRIMARY KEY (booking_id, seat_id),
		UNIQUE (showtime_id, seat_id)
	)`,
	`CREATE TABLE IF NOT EXISTS booking_food (
		booking_id   UUID NOT NULL REFERENCES bookings(id),
		item_id      TEXT NOT NULL,
		name         TEXT NOT NULL,
		unit_price   BIGINT NOT NULL,
		quantity     INT NOT NULL CHECK (quantity > 0),
		PRIMARY KEY (booking_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS payment_attempts (
		id             UUID PRIMARY KEY,
		session_id     UUID NOT NULL,
		user_id        TEXT NOT NULL,
		amount         BIGINT NOT NULL,
		currency       TEXT NOT NULL,
		status         TEXT NOT NULL,
		gateway        TEXT NOT NULL,
		gateway_ref    TEXT,
		refund_state   TEXT NOT NULL DEFAULT 'none',
		failure_reason TEXT,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_payment_attempts_refund ON payment_attempts (refund_state) WHERE refund_state = 'required'`,
}

// Migrate creates the checkout tables when missing
func Migrate(ctx context.Context, db PgxIface) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
