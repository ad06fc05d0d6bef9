package repository

import (
	"context"
	"fmt"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// SeatRepository persists occupancy per (screen, showtime, seat)
type SeatRepository interface {
	FindBookedSeatIDs(ctx context.Context, showtimeID string) ([]string, error)
	MarkBooked(ctx context.Context, ref entity.ShowtimeRef, seatIDs []string) error
}

type seatRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewSeatRepository(db database.PgxIface, log *zap.Logger) SeatRepository {
	return &seatRepository{
		db:  db,
		log: log.With(zap.String("repository", "seat")),
	}
}

func (r *seatRepository) FindBookedSeatIDs(ctx context.Context, showtimeID string) ([]string, error) {
	query := `
		SELECT seat_id
		FROM seat_occupancy
		WHERE showtime_id = $1 AND booked = TRUE
	`

	rows, err := r.db.Query(ctx, query, showtimeID)
	if err != nil {
		r.log.Error("Failed to find booked seats",
			zap.Error(err),
			zap.String("showtime_id", showtimeID),
		)
		return nil, fmt.Errorf("find booked seats for showtime %s: %w", showtimeID, err)
	}
	defer rows.Close()

	var seatIDs []string
	for rows.Next() {
		var seatID string
		if err := rows.Scan(&seatID); err != nil {
			return nil, fmt.Errorf("scan booked seat: %w", err)
		}
		seatIDs = append(seatIDs, seatID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return seatIDs, nil
}

// MarkBooked is all-or-nothing: if any seat already has an occupancy row the
// whole batch is rolled back with ErrSeatAlreadyBooked.
func (r *seatRepository) MarkBooked(ctx context.Context, ref entity.ShowtimeRef, seatIDs []string) error {
	if len(seatIDs) == 0 {
		return nil
	}

	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return insertOccupancy(ctx, tx, ref, seatIDs, nil)
	})
	if err != nil {
		r.log.Warn("Failed to mark seats booked",
			zap.Error(err),
			zap.String("showtime", ref.String()),
			zap.Strings("seat_ids", seatIDs),
		)
		return err
	}

	return nil
}

// insertOccupancy is shared with booking commit so both write the same rows
func insertOccupancy(ctx context.Context, tx pgx.Tx, ref entity.ShowtimeRef, seatIDs []string, bookingID any) error {
	query := `
		INSERT INTO seat_occupancy (showtime_id, screen_id, seat_id, booked, booking_id, updated_at)
		SELECT $1, $2, s, TRUE, $4, NOW()
		FROM unnest($3::text[]) AS s
		ON CONFLICT (showtime_id, seat_id) DO NOTHING
	`

	tag, err := tx.Exec(ctx, query, ref.ShowtimeID, ref.ScreenID, seatIDs, bookingID)
	if err != nil {
		return fmt.Errorf("insert occupancy for showtime %s: %w", ref.ShowtimeID, err)
	}

	if tag.RowsAffected() != int64(len(seatIDs)) {
		return fmt.Errorf("showtime %s: %w", ref.ShowtimeID, entity.ErrSeatAlreadyBooked)
	}

	return nil
}
