package usecase

import (
	"context"
	"fmt"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/internal/data/repository"
	"cinema-checkout/internal/dto/request"
	"cinema-checkout/internal/dto/response"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type BookingService interface {
	// Public endpoints (butuh auth)
	GetUserBookings(ctx context.Context, userID string, req request.PageQuery) (*response.Page[response.BookingResponse], error)
	GetUserBooking(ctx context.Context, userID, bookingID string) (*response.BookingResponse, error)

	// Admin endpoints
	GetBookingByID(ctx context.Context, bookingID string) (*response.BookingResponse, error)
	CancelBooking(ctx context.Context, bookingID string) error
}

type bookingService struct {
	repo *repository.Repository
	log  *zap.Logger
}

func NewBookingService(repo *repository.Repository, log *zap.Logger) BookingService {
	return &bookingService{
		repo: repo,
		log:  log.With(zap.String("service", "booking")),
	}
}

func (s *bookingService) GetUserBookings(ctx context.Context, userID string, req request.PageQuery) (*response.Page[response.BookingResponse], error) {
	limit := req.Limit()
	offset := req.Offset()

	bookings, err := s.repo.Booking.FindByUserID(ctx, userID, limit, offset)
	if err != nil {
		s.log.Error("Failed to get user bookings",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.Int("page", req.Page),
			zap.Int("per_page", req.PerPage),
		)
		return nil, fmt.Errorf("get user bookings: %w", err)
	}

	total, err := s.repo.Booking.CountByUserID(ctx, userID)
	if err != nil {
		s.log.Error("Failed to count user bookings", zap.Error(err))
		return nil, fmt.Errorf("count user bookings: %w", err)
	}

	bookingResponses := make([]response.BookingResponse, len(bookings))
	for i, booking := range bookings {
		bookingResponses[i] = response.BookingToResponse(booking)
	}

	s.log.Info("User bookings retrieved",
		zap.String("user_id", userID),
		zap.Int("count", len(bookings)),
		zap.Int64("total", total),
		zap.Int("page", req.Page),
		zap.Int("per_page", req.PerPage),
	)

	return response.NewPage(bookingResponses, req.Page, limit, total), nil
}

func (s *bookingService) GetUserBooking(ctx context.Context, userID, bookingID string) (*response.BookingResponse, error) {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	// booking milik user lain dianggap tidak ada
	if booking.UserID != userID {
		return nil, fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

func (s *bookingService) find(ctx context.Context, bookingID string) (*entity.Booking, error) {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return nil, fmt.Errorf("invalid booking ID format %s: %w", bookingID, err)
	}

	booking, err := s.repo.Booking.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to get booking", zap.Error(err), zap.String("booking_id", bookingID))
		return nil, fmt.Errorf("get booking %s: %w", bookingID, err)
	}
	if booking == nil {
		return nil, fmt.Errorf("booking %s: %w", bookingID, entity.ErrNotFound)
	}
	return booking, nil
}

// ==================== ADMIN METHODS ====================

func (s *bookingService) GetBookingByID(ctx context.Context, bookingID string) (*response.BookingResponse, error) {
	booking, err := s.find(ctx, bookingID)
	if err != nil {
		return nil, err
	}

	s.log.Info("Booking retrieved",
		zap.String("booking_id", bookingID),
		zap.String("order_id", booking.OrderID),
	)

	resp := response.BookingToResponse(booking)
	return &resp, nil
}

// CancelBooking marks the booking cancelled. Seats stay occupied; whether a
// cancelled seat goes back on sale is left to the operator.
func (s *bookingService) CancelBooking(ctx context.Context, bookingID string) error {
	id, err := uuid.Parse(bookingID)
	if err != nil {
		return fmt.Errorf("invalid booking ID format %s: %w", bookingID, err)
	}

	if err := s.repo.Booking.Cancel(ctx, id); err != nil {
		s.log.Error("Failed to cancel booking",
			zap.Error(err),
			zap.String("booking_id", bookingID),
		)
		return fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}

	s.log.Info("Booking cancelled", zap.String("booking_id", bookingID))
	return nil
}
