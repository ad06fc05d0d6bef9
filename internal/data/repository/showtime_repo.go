package repository

import (
	"context"
	"fmt"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/pkg/database"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// ShowtimeRepository reads scheduling data owned by the catalog side.
// Nothing in checkout writes these tables.
type ShowtimeRepository interface {
	FindByID(ctx context.Context, showtimeID string) (*entity.Showtime, error)
	FindSeatLayout(ctx context.Context, screenID string) ([]*entity.Seat, error)
}

type showtimeRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewShowtimeRepository(db database.PgxIface, log *zap.Logger) ShowtimeRepository {
	return &showtimeRepository{
		db:  db,
		log: log.With(zap.String("repository", "showtime")),
	}
}

func (r *showtimeRepository) FindByID(ctx context.Context, showtimeID string) (*entity.Showtime, error) {
	query := `
		SELECT id, place_id, screen_id, movie_id, movie_title, screen_name, screen_type, language, starts_at
		FROM showtimes
		WHERE id = $1
	`

	var st entity.Showtime
	err := r.db.QueryRow(ctx, query, showtimeID).Scan(
		&st.Ref.ShowtimeID,
		&st.Ref.PlaceID,
		&st.Ref.ScreenID,
		&st.MovieID,
		&st.MovieTitle,
		&st.ScreenName,
		&st.ScreenType,
		&st.Language,
		&st.StartsAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find showtime by ID",
			zap.Error(err),
			zap.String("showtime_id", showtimeID),
		)
		return nil, fmt.Errorf("find showtime by ID %s: %w", showtimeID, err)
	}

	prices, err := r.findPrices(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	st.Prices = prices

	return &st, nil
}

func (r *showtimeRepository) findPrices(ctx context.Context, showtimeID string) (map[entity.SeatType]int64, error) {
	query := `
		SELECT seat_type, price
		FROM showtime_prices
		WHERE showtime_id = $1
	`

	rows, err := r.db.Query(ctx, query, showtimeID)
	if err != nil {
		r.log.Error("Failed to find showtime prices",
			zap.Error(err),
			zap.String("showtime_id", showtimeID),
		)
		return nil, fmt.Errorf("find prices for showtime %s: %w", showtimeID, err)
	}
	defer rows.Close()

	prices := make(map[entity.SeatType]int64)
	for rows.Next() {
		var seatType entity.SeatType
		var price int64
		if err := rows.Scan(&seatType, &price); err != nil {
			return nil, fmt.Errorf("scan showtime price: %w", err)
		}
		prices[seatType] = price
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return prices, nil
}

func (r *showtimeRepository) FindSeatLayout(ctx context.Context, screenID string) ([]*entity.Seat, error) {
	query := `
		SELECT screen_id, seat_id, seat_row, seat_column, seat_type
		FROM seats
		WHERE screen_id = $1
		ORDER BY seat_row, seat_column
	`

	rows, err := r.db.Query(ctx, query, screenID)
	if err != nil {
		r.log.Error("Failed to find seat layout",
			zap.Error(err),
			zap.String("screen_id", screenID),
		)
		return nil, fmt.Errorf("find seat layout for screen %s: %w", screenID, err)
	}
	defer rows.Close()

	var seats []*entity.Seat
	for rows.Next() {
		var seat entity.Seat
		if err := rows.Scan(
			&seat.ScreenID,
			&seat.SeatID,
			&seat.Row,
			&seat.Column,
			&seat.Type,
		); err != nil {
			r.log.Error("Failed to scan seat", zap.Error(err))
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		seats = append(seats, &seat)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return seats, nil
}
