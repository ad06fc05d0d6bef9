package repository

import (
	"context"
	"fmt"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// BookingRepository is the durable booking store
type BookingRepository interface {
	// Commit writes the booking, its seat and food lines, and seat occupancy in
	// one transaction. Re-committing an existing ID returns the stored booking.
	Commit(ctx context.Context, booking *entity.Booking) (*entity.Booking, error)
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Booking, error)
	CountByUserID(ctx context.Context, userID string) (int64, error)
	Cancel(ctx context.Context, id uuid.UUID) error
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

func (r *bookingRepository) Commit(ctx context.Context, booking *entity.Booking) (*entity.Booking, error) {
	var inserted bool

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO bookings (id, order_id, session_id, user_id, attempt_id, place_id, screen_id, showtime_id,
				seat_amount, food_amount, total_amount, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (id) DO NOTHING
		`

		tag, err := tx.Exec(ctx, query,
			booking.ID,
			booking.OrderID,
			booking.SessionID,
			booking.UserID,
			booking.AttemptID,
			booking.Showtime.PlaceID,
			booking.Showtime.ScreenID,
			booking.Showtime.ShowtimeID,
			booking.SeatAmount,
			booking.FoodAmount,
			booking.TotalAmount,
			booking.Status,
			booking.CreatedAt,
			booking.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		// duplicate webhook, first commit already landed
		if tag.RowsAffected() == 0 {
			return nil
		}
		inserted = true

		for _, seat := range booking.Seats {
			_, err := tx.Exec(ctx, `
				INSERT INTO booking_seats (booking_id, showtime_id, seat_id, seat_type, price)
				VALUES ($1, $2, $3, $4, $5)
			`, booking.ID, booking.Showtime.ShowtimeID, seat.SeatID, seat.Type, seat.Price)
			if database.IsUniqueViolation(err) {
				return fmt.Errorf("seat %s: %w", seat.SeatID, entity.ErrSeatAlreadyBooked)
			}
			if err != nil {
				return fmt.Errorf("insert booking seat %s: %w", seat.SeatID, err)
			}
		}

		if err := insertOccupancy(ctx, tx, booking.Showtime, booking.SeatIDs(), booking.ID); err != nil {
			return err
		}

		for _, food := range booking.Food {
			_, err := tx.Exec(ctx, `
				INSERT INTO booking_food (booking_id, item_id, name, unit_price, quantity)
				VALUES ($1, $2, $3, $4, $5)
			`, booking.ID, food.ItemID, food.Name, food.UnitPrice, food.Quantity)
			if err != nil {
				return fmt.Errorf("insert booking food %s: %w", food.ItemID, err)
			}
		}

		return nil
	})
	if err != nil {
		r.log.Error("Failed to commit booking",
			zap.Error(err),
			zap.String("booking_id", booking.ID.String()),
			zap.String("showtime", booking.Showtime.String()),
		)
		return nil, fmt.Errorf("commit booking %s: %w", booking.ID.String(), err)
	}

	if inserted {
		return booking, nil
	}

	existing, err := r.FindByID(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("booking %s vanished after conflict: %w", booking.ID.String(), entity.ErrNotFound)
	}
	return existing, nil
}

const bookingColumns = `id, order_id, session_id, user_id, attempt_id, place_id, screen_id, showtime_id,
	seat_amount, food_amount, total_amount, status, created_at, updated_at`

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var b entity.Booking
	err := row.Scan(
		&b.ID,
		&b.OrderID,
		&b.SessionID,
		&b.UserID,
		&b.AttemptID,
		&b.Showtime.PlaceID,
		&b.Showtime.ScreenID,
		&b.Showtime.ShowtimeID,
		&b.SeatAmount,
		&b.FoodAmount,
		&b.TotalAmount,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	if err := r.loadLines(ctx, []*entity.Booking{booking}); err != nil {
		return nil, err
	}

	return booking, nil
}

// FindByUserID returns most recent bookings first
func (r *bookingRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return nil, fmt.Errorf("find bookings by user ID %s: %w", userID, err)
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			r.log.Error("Failed to scan booking", zap.Error(err))
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if err := r.loadLines(ctx, bookings); err != nil {
		return nil, err
	}

	return bookings, nil
}

func (r *bookingRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	query := `SELECT COUNT(*) FROM bookings WHERE user_id = $1`

	var count int64
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		r.log.Error("Failed to count bookings by user ID",
			zap.Error(err),
			zap.String("user_id", userID),
		)
		return 0, fmt.Errorf("count bookings by user ID %s: %w", userID, err)
	}

	return count, nil
}

// Cancel flips status only; occupancy rows stay
func (r *bookingRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE bookings
		SET status = $2, updated_at = NOW()
		WHERE id = $1
	`

	tag, err := r.db.Exec(ctx, query, id, entity.BookingStatusCancelled)
	if err != nil {
		r.log.Error("Failed to cancel booking",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return fmt.Errorf("cancel booking %s: %w", id.String(), err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("booking %s: %w", id.String(), entity.ErrNotFound)
	}

	return nil
}

// loadLines fills seat and food lines for a page of bookings in two queries
func (r *bookingRepository) loadLines(ctx context.Context, bookings []*entity.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	ids := make([]string, len(bookings))
	byID := make(map[uuid.UUID]*entity.Booking, len(bookings))
	for i, b := range bookings {
		ids[i] = b.ID.String()
		byID[b.ID] = b
	}

	seatRows, err := r.db.Query(ctx, `
		SELECT booking_id, seat_id, seat_type, price
		FROM booking_seats
		WHERE booking_id = ANY($1::uuid[])
		ORDER BY seat_id
	`, ids)
	if err != nil {
		return fmt.Errorf("find booking seats: %w", err)
	}
	defer seatRows.Close()

	for seatRows.Next() {
		var bookingID uuid.UUID
		var seat entity.BookingSeat
		if err := seatRows.Scan(&bookingID, &seat.SeatID, &seat.Type, &seat.Price); err != nil {
			return fmt.Errorf("scan booking seat: %w", err)
		}
		if b := byID[bookingID]; b != nil {
			b.Seats = append(b.Seats, seat)
		}
	}
	if err := seatRows.Err(); err != nil {
		return fmt.Errorf("rows iteration error: %w", err)
	}

	foodRows, err := r.db.Query(ctx, `
		SELECT booking_id, item_id, name, unit_price, quantity
		FROM booking_food
		WHERE booking_id = ANY($1::uuid[])
		ORDER BY item_id
	`, ids)
	if err != nil {
		return fmt.Errorf("find booking food: %w", err)
	}
	defer foodRows.Close()

	for foodRows.Next() {
		var bookingID uuid.UUID
		var food entity.BookingFood
		if err := foodRows.Scan(&bookingID, &food.ItemID, &food.Name, &food.UnitPrice, &food.Quantity); err != nil {
			return fmt.Errorf("scan booking food: %w", err)
		}
		if b := byID[bookingID]; b != nil {
			b.Food = append(b.Food, food)
		}
	}

	return foodRows.Err()
}
