package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartService keeps one cart per checkout session. Seat lines exist only
// while the session holds the seat in the ledger.
type CartService interface {
	Open(sessionID uuid.UUID, ref entity.ShowtimeRef)
	AddSeat(ctx context.Context, sessionID uuid.UUID, seatID string) (*entity.Hold, error)
	RemoveSeat(ctx context.Context, sessionID uuid.UUID, seatID string) error
	SetFoodQty(ctx context.Context, sessionID uuid.UUID, itemID string, qty int) error
	Totals(sessionID uuid.UUID) (entity.CartTotals, error)
	Snapshot(sessionID uuid.UUID) (entity.Cart, error)

	// Reconcile drops seat lines whose hold is gone and returns their ids
	Reconcile(ctx context.Context, sessionID uuid.UUID) ([]string, error)

	// RefreshHolds re-asserts every seat hold for a full ttl; seats lost to
	// another session are dropped and returned
	RefreshHolds(ctx context.Context, sessionID uuid.UUID) ([]string, error)

	// Discard releases the session's holds and forgets the cart
	Discard(ctx context.Context, sessionID uuid.UUID) error
}

type sessionCart struct {
	mu   sync.Mutex
	cart entity.Cart
}

type cartService struct {
	ledger  ReservationLedger
	seats   SeatMap
	repo    *repository.Repository
	holdTTL time.Duration
	log     *zap.Logger

	mu    sync.RWMutex
	carts map[uuid.UUID]*sessionCart
}

func NewCartService(ledger ReservationLedger, seats SeatMap, repo *repository.Repository, holdTTL time.Duration, log *zap.Logger) CartService {
	return &cartService{
		ledger:  ledger,
		seats:   seats,
		repo:    repo,
		holdTTL: holdTTL,
		log:     log.With(zap.String("service", "cart")),
		carts:   make(map[uuid.UUID]*sessionCart),
	}
}

func (s *cartService) get(sessionID uuid.UUID) (*sessionCart, error) {
	s.mu.RLock()
	c, ok := s.carts[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("cart for session %s: %w", sessionID, entity.ErrNotFound)
	}
	return c, nil
}

func (s *cartService) Open(sessionID uuid.UUID, ref entity.ShowtimeRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.carts[sessionID]; ok {
		return
	}
	s.carts[sessionID] = &sessionCart{
		cart: entity.Cart{
			SessionID: sessionID,
			Showtime:  ref,
			Lines:     []entity.CartLine{},
		},
	}
}

func (s *cartService) AddSeat(ctx context.Context, sessionID uuid.UUID, seatID string) (*entity.Hold, error) {
	c, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	seat, err := s.seats.Seat(ctx, c.cart.Showtime, seatID)
	if err != nil {
		return nil, err
	}

	hold, err := s.ledger.TryHold(ctx, sessionID, c.cart.Showtime, seatID, s.holdTTL)
	if err != nil {
		return nil, err
	}

	// re-selecting a seat only refreshes its hold
	if seatLineIndex(c.cart.Lines, seatID) >= 0 {
		return hold, nil
	}

	c.cart.Lines = append(c.cart.Lines, entity.CartLine{
		Kind:      entity.CartLineSeat,
		SeatID:    seat.SeatID,
		SeatType:  seat.Type,
		Name:      fmt.Sprintf("Seat %s (%s)", seat.SeatID, seat.Type),
		UnitPrice: seat.Price,
		Quantity:  1,
	})

	s.log.Debug("Seat added to cart",
		zap.String("session_id", sessionID.String()),
		zap.String("seat_id", seatID),
		zap.Time("hold_expires_at", hold.ExpiresAt),
	)
	return hold, nil
}

func (s *cartService) RemoveSeat(ctx context.Context, sessionID uuid.UUID, seatID string) error {
	c, err := s.get(sessionID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := s.ledger.Release(ctx, sessionID, seatID); err != nil {
		return fmt.Errorf("release seat %s: %w", seatID, err)
	}

	if i := seatLineIndex(c.cart.Lines, seatID); i >= 0 {
		c.cart.Lines = append(c.cart.Lines[:i], c.cart.Lines[i+1:]...)
	}
	return nil
}

func (s *cartService) SetFoodQty(ctx context.Context, sessionID uuid.UUID, itemID string, qty int) error {
	if qty < 0 {
		return fmt.Errorf("food %s quantity %d: %w", itemID, qty, entity.ErrInvalidQuantity)
	}

	c, err := s.get(sessionID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	idx := foodLineIndex(c.cart.Lines, itemID)
	if qty == 0 {
		if idx >= 0 {
			c.cart.Lines = append(c.cart.Lines[:idx], c.cart.Lines[idx+1:]...)
		}
		return nil
	}

	if idx >= 0 {
		c.cart.Lines[idx].Quantity = qty
		return nil
	}

	item, err := s.repo.Food.FindByID(ctx, itemID)
	if err != nil {
		return fmt.Errorf("find food item %s: %w", itemID, err)
	}
	if item == nil || !item.IsActive {
		return fmt.Errorf("food item %s: %w", itemID, entity.ErrNotFound)
	}

	c.cart.Lines = append(c.cart.Lines, entity.CartLine{
		Kind:       entity.CartLineFood,
		FoodItemID: item.ID,
		Name:       item.Name,
		UnitPrice:  item.Price,
		Quantity:   qty,
	})
	return nil
}

func (s *cartService) Totals(sessionID uuid.UUID) (entity.CartTotals, error) {
	cart, err := s.Snapshot(sessionID)
	if err != nil {
		return entity.CartTotals{}, err
	}
	return cart.Totals(), nil
}

func (s *cartService) Snapshot(sessionID uuid.UUID) (entity.Cart, error) {
	c, err := s.get(sessionID)
	if err != nil {
		return entity.Cart{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	cart := c.cart
	cart.Lines = append([]entity.CartLine(nil), c.cart.Lines...)
	return cart, nil
}

func (s *cartService) Reconcile(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	c, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	holds, err := s.ledger.HoldsForSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list holds: %w", err)
	}
	held := make(map[string]bool, len(holds))
	for _, h := range holds {
		held[h.SeatID] = true
	}

	return s.dropSeats(c, func(line entity.CartLine) bool { return !held[line.SeatID] }), nil
}

func (s *cartService) RefreshHolds(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	c, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	lost := make(map[string]bool)
	for _, line := range c.cart.Lines {
		if line.Kind != entity.CartLineSeat {
			continue
		}
		if _, err := s.ledger.TryHold(ctx, sessionID, c.cart.Showtime, line.SeatID, s.holdTTL); err != nil {
			if !entity.IsConflictError(err) {
				return nil, fmt.Errorf("refresh hold %s: %w", line.SeatID, err)
			}
			lost[line.SeatID] = true
		}
	}

	return s.dropSeats(c, func(line entity.CartLine) bool { return lost[line.SeatID] }), nil
}

// dropSeats must be called with c.mu held
func (s *cartService) dropSeats(c *sessionCart, drop func(entity.CartLine) bool) []string {
	dropped := []string{}
	kept := c.cart.Lines[:0]
	for _, line := range c.cart.Lines {
		if line.Kind == entity.CartLineSeat && drop(line) {
			dropped = append(dropped, line.SeatID)
			continue
		}
		kept = append(kept, line)
	}
	c.cart.Lines = kept

	if len(dropped) > 0 {
		s.log.Info("Seats dropped from cart after hold loss",
			zap.String("session_id", c.cart.SessionID.String()),
			zap.Strings("seat_ids", dropped),
		)
	}
	return dropped
}

func (s *cartService) Discard(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	delete(s.carts, sessionID)
	s.mu.Unlock()

	if _, err := s.ledger.ReleaseSession(ctx, sessionID); err != nil {
		return fmt.Errorf("release holds for session %s: %w", sessionID, err)
	}
	return nil
}

func seatLineIndex(lines []entity.CartLine, seatID string) int {
	for i, l := range lines {
		if l.Kind == entity.CartLineSeat && l.SeatID == seatID {
			return i
		}
	}
	return -1
}

func foodLineIndex(lines []entity.CartLine, itemID string) int {
	for i, l := range lines {
		if l.Kind == entity.CartLineFood && l.FoodItemID == itemID {
			return i
		}
	}
	return -1
}
