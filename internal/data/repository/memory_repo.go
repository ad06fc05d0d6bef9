package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cinema-checkout/internal/data/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// memoryStore backs every in-memory repository so that booking commit and
// occupancy stay consistent under one lock, the way a single transaction does.
type memoryStore struct {
	mu        sync.RWMutex
	showtimes map[string]*entity.Showtime
	layouts   map[string][]*entity.Seat
	occupancy map[string]map[string]uuid.UUID // showtime -> seat -> booking (Nil when marked directly)
	food      map[string]*entity.FoodItem
	bookings  map[uuid.UUID]*entity.Booking
	attempts  map[uuid.UUID]*entity.PaymentAttempt
}

// NewMemoryRepository builds repositories over process memory, for dev and tests
func NewMemoryRepository(seed *Seed, log *zap.Logger) (*Repository, error) {
	s := &memoryStore{
		showtimes: make(map[string]*entity.Showtime),
		layouts:   make(map[string][]*entity.Seat),
		occupancy: make(map[string]map[string]uuid.UUID),
		food:      make(map[string]*entity.FoodItem),
		bookings:  make(map[uuid.UUID]*entity.Booking),
		attempts:  make(map[uuid.UUID]*entity.PaymentAttempt),
	}

	if seed != nil {
		for _, st := range seed.Showtimes {
			showtime, err := st.toEntity()
			if err != nil {
				return nil, err
			}
			s.showtimes[showtime.Ref.ShowtimeID] = showtime

			if _, ok := s.layouts[st.ScreenID]; !ok && len(st.Rows) > 0 {
				layout, err := st.layout()
				if err != nil {
					return nil, err
				}
				s.layouts[st.ScreenID] = layout
			}
		}
		for _, f := range seed.Food {
			s.food[f.ID] = &entity.FoodItem{ID: f.ID, Name: f.Name, Price: f.Price, IsActive: true}
		}
	}

	log.Info("Memory storage initialized",
		zap.Int("showtimes", len(s.showtimes)),
		zap.Int("screens", len(s.layouts)),
		zap.Int("food_items", len(s.food)),
	)

	return &Repository{
		Showtime: &memShowtimeRepository{s},
		Seat:     &memSeatRepository{s},
		Food:     &memFoodRepository{s},
		Booking:  &memBookingRepository{s},
		Payment:  &memPaymentRepository{s},
	}, nil
}

// ==================== SHOWTIME ====================

type memShowtimeRepository struct{ s *memoryStore }

func (r *memShowtimeRepository) FindByID(ctx context.Context, showtimeID string) (*entity.Showtime, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.showtimes[showtimeID]
	if !ok {
		return nil, nil
	}

	cp := *st
	cp.Prices = make(map[entity.SeatType]int64, len(st.Prices))
	for k, v := range st.Prices {
		cp.Prices[k] = v
	}
	return &cp, nil
}

func (r *memShowtimeRepository) FindSeatLayout(ctx context.Context, screenID string) ([]*entity.Seat, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	layout := r.s.layouts[screenID]
	seats := make([]*entity.Seat, len(layout))
	for i, seat := range layout {
		cp := *seat
		seats[i] = &cp
	}
	return seats, nil
}

// ==================== SEAT ====================

type memSeatRepository struct{ s *memoryStore }

func (r *memSeatRepository) FindBookedSeatIDs(ctx context.Context, showtimeID string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var ids []string
	for seatID := range r.s.occupancy[showtimeID] {
		ids = append(ids, seatID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *memSeatRepository) MarkBooked(ctx context.Context, ref entity.ShowtimeRef, seatIDs []string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	return r.s.occupyLocked(ref.ShowtimeID, seatIDs, uuid.Nil)
}

func (s *memoryStore) occupyLocked(showtimeID string, seatIDs []string, bookingID uuid.UUID) error {
	occ := s.occupancy[showtimeID]
	for _, id := range seatIDs {
		if _, taken := occ[id]; taken {
			return fmt.Errorf("seat %s: %w", id, entity.ErrSeatAlreadyBooked)
		}
	}

	if occ == nil {
		occ = make(map[string]uuid.UUID)
		s.occupancy[showtimeID] = occ
	}
	for _, id := range seatIDs {
		occ[id] = bookingID
	}
	return nil
}

// ==================== FOOD ====================

type memFoodRepository struct{ s *memoryStore }

func (r *memFoodRepository) FindByID(ctx context.Context, id string) (*entity.FoodItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	item, ok := r.s.food[id]
	if !ok {
		return nil, nil
	}
	cp := *item
	return &cp, nil
}

func (r *memFoodRepository) FindAllActive(ctx context.Context) ([]*entity.FoodItem, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var items []*entity.FoodItem
	for _, item := range r.s.food {
		if item.IsActive {
			cp := *item
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// ==================== BOOKING ====================

type memBookingRepository struct{ s *memoryStore }

func cloneBooking(b *entity.Booking) *entity.Booking {
	cp := *b
	cp.Seats = append([]entity.BookingSeat(nil), b.Seats...)
	cp.Food = append([]entity.BookingFood(nil), b.Food...)
	return &cp
}

func (r *memBookingRepository) Commit(ctx context.Context, booking *entity.Booking) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if existing, ok := r.s.bookings[booking.ID]; ok {
		return cloneBooking(existing), nil
	}

	if err := r.s.occupyLocked(booking.Showtime.ShowtimeID, booking.SeatIDs(), booking.ID); err != nil {
		return nil, fmt.Errorf("commit booking %s: %w", booking.ID.String(), err)
	}

	r.s.bookings[booking.ID] = cloneBooking(booking)
	return cloneBooking(booking), nil
}

func (r *memBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return cloneBooking(b), nil
}

func (r *memBookingRepository) userBookingsLocked(userID string) []*entity.Booking {
	var out []*entity.Booking
	for _, b := range r.s.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

func (r *memBookingRepository) FindByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Booking, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.userBookingsLocked(userID)
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if limit <= 0 || end > len(all) {
		end = len(all)
	}

	page := make([]*entity.Booking, 0, end-offset)
	for _, b := range all[offset:end] {
		page = append(page, cloneBooking(b))
	}
	return page, nil
}

func (r *memBookingRepository) CountByUserID(ctx context.Context, userID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return int64(len(r.userBookingsLocked(userID))), nil
}

func (r *memBookingRepository) Cancel(ctx context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	b, ok := r.s.bookings[id]
	if !ok {
		return fmt.Errorf("booking %s: %w", id.String(), entity.ErrNotFound)
	}
	b.Status = entity.BookingStatusCancelled
	return nil
}

// ==================== PAYMENT ====================

type memPaymentRepository struct{ s *memoryStore }

func (r *memPaymentRepository) Save(ctx context.Context, attempt *entity.PaymentAttempt) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *attempt
	cp.ClientSecret = ""
	r.s.attempts[attempt.ID] = &cp
	return nil
}

func (r *memPaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.PaymentAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	a, ok := r.s.attempts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *memPaymentRepository) FindRefundRequired(ctx context.Context) ([]*entity.PaymentAttempt, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var out []*entity.PaymentAttempt
	for _, a := range r.s.attempts {
		if a.RefundState == entity.RefundRequired {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	return out, nil
}
