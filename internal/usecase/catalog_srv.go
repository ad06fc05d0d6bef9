package usecase

import (
	"context"
	"fmt"

	"cinema-checkout/internal/data/repository"
	"cinema-checkout/internal/dto/response"

	"go.uber.org/zap"
)

type CatalogService interface {
	GetSeatMap(ctx context.Context, showtimeID string) (*response.SeatMapResponse, error)
	GetFoodMenu(ctx context.Context) ([]response.FoodItemResponse, error)
}

type catalogService struct {
	seats SeatMap
	repo  *repository.Repository
	log   *zap.Logger
}

func NewCatalogService(seats SeatMap, repo *repository.Repository, log *zap.Logger) CatalogService {
	return &catalogService{
		seats: seats,
		repo:  repo,
		log:   log.With(zap.String("service", "catalog")),
	}
}

func (s *catalogService) GetSeatMap(ctx context.Context, showtimeID string) (*response.SeatMapResponse, error) {
	showtime, err := s.seats.Showtime(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	seats, err := s.seats.Snapshot(ctx, showtime.Ref)
	if err != nil {
		s.log.Error("Failed to snapshot seat map",
			zap.Error(err),
			zap.String("showtime_id", showtimeID),
		)
		return nil, fmt.Errorf("snapshot seats for showtime %s: %w", showtimeID, err)
	}

	available := 0
	for _, seat := range seats {
		if !seat.Booked {
			available++
		}
	}

	s.log.Debug("Seat map retrieved",
		zap.String("showtime_id", showtimeID),
		zap.Int("total_seats", len(seats)),
		zap.Int("available_seats", available),
	)

	resp := response.SeatMapToResponse(showtime, seats)
	return &resp, nil
}

func (s *catalogService) GetFoodMenu(ctx context.Context) ([]response.FoodItemResponse, error) {
	items, err := s.repo.Food.FindAllActive(ctx)
	if err != nil {
		s.log.Error("Failed to get food menu", zap.Error(err))
		return nil, fmt.Errorf("get food menu: %w", err)
	}

	menu := make([]response.FoodItemResponse, 0, len(items))
	for _, item := range items {
		if item == nil || !item.IsActive {
			continue
		}
		menu = append(menu, response.FoodItemToResponse(item))
	}
	return menu, nil
}
