package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/pkg/database"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/viper"
)

// Seed describes showtimes, screen layouts and the food menu
type Seed struct {
	Showtimes []SeedShowtime `mapstructure:"showtimes"`
	Food      []SeedFood     `mapstructure:"food"`
}

type SeedShowtime struct {
	PlaceID    string           `mapstructure:"place_id"`
	ScreenID   string           `mapstructure:"screen_id"`
	ShowtimeID string           `mapstructure:"showtime_id"`
	MovieID    string           `mapstructure:"movie_id"`
	MovieTitle string           `mapstructure:"movie_title"`
	ScreenName string           `mapstructure:"screen_name"`
	ScreenType string           `mapstructure:"screen_type"`
	Language   string           `mapstructure:"language"`
	StartsAt   string           `mapstructure:"starts_at"` // RFC3339
	Prices     map[string]int64 `mapstructure:"prices"`
	Rows       []SeedRow        `mapstructure:"rows"`
}

type SeedRow struct {
	Row   string `mapstructure:"row"`
	Seats int    `mapstructure:"seats"`
	Type  string `mapstructure:"type"`
}

type SeedFood struct {
	ID    string `mapstructure:"id"`
	Name  string `mapstructure:"name"`
	Price int64  `mapstructure:"price"`
}

// LoadSeed reads a yaml/json seed file
func LoadSeed(path string) (*Seed, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read seed file %s: %w", path, err)
	}

	var seed Seed
	if err := v.Unmarshal(&seed); err != nil {
		return nil, fmt.Errorf("decode seed file %s: %w", path, err)
	}

	return &seed, nil
}

// DemoSeed is one screen with silver, gold and platinum rows and a small menu
func DemoSeed() *Seed {
	return &Seed{
		Showtimes: []SeedShowtime{
			{
				PlaceID:    "pvr-forum",
				ScreenID:   "audi-1",
				ShowtimeID: "st-1001",
				MovieID:    "mv-interstellar",
				MovieTitle: "Interstellar",
				ScreenName: "Audi 1",
				ScreenType: "IMAX",
				Language:   "English",
				StartsAt:   "2026-10-20T18:30:00+05:30",
				Prices:     map[string]int64{"silver": 150, "gold": 250, "platinum": 400},
				Rows: []SeedRow{
					{Row: "A", Seats: 10, Type: "silver"},
					{Row: "B", Seats: 10, Type: "silver"},
					{Row: "C", Seats: 10, Type: "gold"},
					{Row: "D", Seats: 10, Type: "gold"},
					{Row: "E", Seats: 8, Type: "platinum"},
				},
			},
		},
		Food: []SeedFood{
			{ID: "popcorn", Name: "Popcorn", Price: 120},
			{ID: "nachos", Name: "Nachos", Price: 180},
			{ID: "cola", Name: "Cola", Price: 90},
		},
	}
}

func (s SeedShowtime) toEntity() (*entity.Showtime, error) {
	if s.ShowtimeID == "" || s.ScreenID == "" {
		return nil, fmt.Errorf("seed showtime missing showtime_id or screen_id")
	}

	var startsAt time.Time
	if s.StartsAt != "" {
		t, err := time.Parse(time.RFC3339, s.StartsAt)
		if err != nil {
			return nil, fmt.Errorf("showtime %s starts_at: %w", s.ShowtimeID, err)
		}
		startsAt = t
	}

	prices := make(map[entity.SeatType]int64, len(s.Prices))
	for k, v := range s.Prices {
		t := entity.SeatType(strings.ToLower(k))
		if !t.Valid() {
			return nil, fmt.Errorf("showtime %s: unknown seat type %q", s.ShowtimeID, k)
		}
		prices[t] = v
	}

	return &entity.Showtime{
		Ref: entity.ShowtimeRef{
			PlaceID:    s.PlaceID,
			ScreenID:   s.ScreenID,
			ShowtimeID: s.ShowtimeID,
		},
		MovieID:    s.MovieID,
		MovieTitle: s.MovieTitle,
		ScreenName: s.ScreenName,
		ScreenType: s.ScreenType,
		Language:   s.Language,
		StartsAt:   startsAt,
		Prices:     prices,
	}, nil
}

func (s SeedShowtime) layout() ([]*entity.Seat, error) {
	var seats []*entity.Seat
	for _, row := range s.Rows {
		t := entity.SeatType(strings.ToLower(row.Type))
		if !t.Valid() {
			return nil, fmt.Errorf("screen %s row %s: unknown seat type %q", s.ScreenID, row.Row, row.Type)
		}
		for col := 1; col <= row.Seats; col++ {
			seats = append(seats, &entity.Seat{
				ScreenID: s.ScreenID,
				SeatID:   row.Row + strconv.Itoa(col),
				Row:      row.Row,
				Column:   col,
				Type:     t,
			})
		}
	}
	return seats, nil
}

// ApplySeed upserts the seed's catalog into Postgres. Occupancy and bookings
// are never touched, so re-running it on a live database is safe.
func ApplySeed(ctx context.Context, db database.PgxIface, seed *Seed) error {
	return database.WithTx(ctx, db, func(tx pgx.Tx) error {
		for _, s := range seed.Showtimes {
			showtime, err := s.toEntity()
			if err != nil {
				return err
			}
			layout, err := s.layout()
			if err != nil {
				return err
			}

			_, err = tx.Exec(ctx, `
				INSERT INTO showtimes (id, place_id, screen_id, movie_id, movie_title, screen_name, screen_type, language, starts_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				ON CONFLICT (id) DO UPDATE SET
					movie_title = EXCLUDED.movie_title,
					screen_name = EXCLUDED.screen_name,
					screen_type = EXCLUDED.screen_type,
					language = EXCLUDED.language,
					starts_at = EXCLUDED.starts_at
			`, showtime.Ref.ShowtimeID, showtime.Ref.PlaceID, showtime.Ref.ScreenID, showtime.MovieID,
				showtime.MovieTitle, showtime.ScreenName, showtime.ScreenType, showtime.Language, showtime.StartsAt)
			if err != nil {
				return fmt.Errorf("seed showtime %s: %w", showtime.Ref.ShowtimeID, err)
			}

			for t, price := range showtime.Prices {
				_, err = tx.Exec(ctx, `
					INSERT INTO showtime_prices (showtime_id, seat_type, price)
					VALUES ($1, $2, $3)
					ON CONFLICT (showtime_id, seat_type) DO NOTHING
				`, showtime.Ref.ShowtimeID, string(t), price)
				if err != nil {
					return fmt.Errorf("seed price %s/%s: %w", showtime.Ref.ShowtimeID, t, err)
				}
			}

			for _, seat := range layout {
				_, err = tx.Exec(ctx, `
					INSERT INTO seats (screen_id, seat_id, seat_row, seat_column, seat_type)
					VALUES ($1, $2, $3, $4, $5)
					ON CONFLICT (screen_id, seat_id) DO NOTHING
				`, seat.ScreenID, seat.SeatID, seat.Row, seat.Column, string(seat.Type))
				if err != nil {
					return fmt.Errorf("seed seat %s/%s: %w", seat.ScreenID, seat.SeatID, err)
				}
			}
		}

		for _, f := range seed.Food {
			_, err := tx.Exec(ctx, `
				INSERT INTO food_items (id, name, price, is_active)
				VALUES ($1, $2, $3, TRUE)
				ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price
			`, f.ID, f.Name, f.Price)
			if err != nil {
				return fmt.Errorf("seed food %s: %w", f.ID, err)
			}
		}
		return nil
	})
}
