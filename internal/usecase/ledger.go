package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"cinema-checkout/internal/data/entity"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Clock is injected so hold expiry can be tested without sleeping
type Clock func() time.Time

// ReservationLedger tracks temporary seat holds per (showtime, seat)
type ReservationLedger interface {
	// TryHold grants or refreshes a hold. Fails with ErrSeatUnavailable when the
	// seat is booked or held by another session whose hold has not expired.
	TryHold(ctx context.Context, sessionID uuid.UUID, ref entity.ShowtimeRef, seatID string, ttl time.Duration) (*entity.Hold, error)
	Release(ctx context.Context, sessionID uuid.UUID, seatID string) error
	ReleaseSession(ctx context.Context, sessionID uuid.UUID) (int, error)
	HoldsForSession(ctx context.Context, sessionID uuid.UUID) ([]entity.Hold, error)
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

type holdKey struct {
	showtimeID string
	seatID     string
}

type holdSlot struct {
	mu   sync.Mutex
	hold *entity.Hold
}

type memoryLedger struct {
	seats SeatMap
	now   Clock
	log   *zap.Logger

	// holdKey -> *holdSlot. Slots are never deleted: a goroutine may already
	// hold a pointer, and a fresh slot for the same key would split the lock.
	slots sync.Map

	// lock order: slot.mu, then mu
	mu       sync.Mutex
	sessions map[uuid.UUID]map[string]holdKey
}

func NewMemoryLedger(seats SeatMap, now Clock, log *zap.Logger) ReservationLedger {
	if now == nil {
		now = time.Now
	}
	return &memoryLedger{
		seats:    seats,
		now:      now,
		log:      log.With(zap.String("service", "ledger")),
		sessions: make(map[uuid.UUID]map[string]holdKey),
	}
}

func (l *memoryLedger) slot(key holdKey) *holdSlot {
	if v, ok := l.slots.Load(key); ok {
		return v.(*holdSlot)
	}
	v, _ := l.slots.LoadOrStore(key, &holdSlot{})
	return v.(*holdSlot)
}

func (l *memoryLedger) index(sessionID uuid.UUID, seatID string, key holdKey) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seats, ok := l.sessions[sessionID]
	if !ok {
		seats = make(map[string]holdKey)
		l.sessions[sessionID] = seats
	}
	seats[seatID] = key
}

func (l *memoryLedger) unindex(sessionID uuid.UUID, key holdKey) {
	l.mu.Lock()
	defer l.mu.Unlock()

	seats, ok := l.sessions[sessionID]
	if !ok {
		return
	}
	if seats[key.seatID] == key {
		delete(seats, key.seatID)
	}
	if len(seats) == 0 {
		delete(l.sessions, sessionID)
	}
}

func (l *memoryLedger) TryHold(ctx context.Context, sessionID uuid.UUID, ref entity.ShowtimeRef, seatID string, ttl time.Duration) (*entity.Hold, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("hold ttl must be positive, got %s", ttl)
	}

	key := holdKey{showtimeID: ref.ShowtimeID, seatID: seatID}
	slot := l.slot(key)

	slot.mu.Lock()
	defer slot.mu.Unlock()

	booked, err := l.seats.IsBooked(ctx, ref, seatID)
	if err != nil {
		return nil, err
	}
	if booked {
		return nil, fmt.Errorf("seat %s is booked: %w", seatID, entity.ErrSeatUnavailable)
	}

	now := l.now()
	if cur := slot.hold; cur != nil && cur.SessionID != sessionID {
		if !cur.Expired(now) {
			return nil, fmt.Errorf("seat %s is held: %w", seatID, entity.ErrSeatUnavailable)
		}
		// reclaim from the lapsed owner before the sweeper gets to it
		l.unindex(cur.SessionID, key)
		l.log.Debug("Expired hold reclaimed",
			zap.String("seat_id", seatID),
			zap.String("previous_session", cur.SessionID.String()),
			zap.String("session_id", sessionID.String()),
		)
	}

	hold := &entity.Hold{
		SessionID: sessionID,
		SeatID:    seatID,
		Showtime:  ref,
		ExpiresAt: now.Add(ttl),
	}
	slot.hold = hold
	l.index(sessionID, seatID, key)

	cp := *hold
	return &cp, nil
}

func (l *memoryLedger) Release(ctx context.Context, sessionID uuid.UUID, seatID string) error {
	l.mu.Lock()
	key, ok := l.sessions[sessionID][seatID]
	l.mu.Unlock()
	if !ok {
		return nil
	}

	l.release(sessionID, key)
	return nil
}

func (l *memoryLedger) release(sessionID uuid.UUID, key holdKey) bool {
	slot := l.slot(key)
	slot.mu.Lock()
	defer slot.mu.Unlock()

	l.unindex(sessionID, key)
	if slot.hold == nil || slot.hold.SessionID != sessionID {
		return false
	}
	slot.hold = nil
	return true
}

func (l *memoryLedger) ReleaseSession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	l.mu.Lock()
	keys := make([]holdKey, 0, len(l.sessions[sessionID]))
	for _, key := range l.sessions[sessionID] {
		keys = append(keys, key)
	}
	l.mu.Unlock()

	released := 0
	for _, key := range keys {
		if l.release(sessionID, key) {
			released++
		}
	}
	return released, nil
}

func (l *memoryLedger) HoldsForSession(ctx context.Context, sessionID uuid.UUID) ([]entity.Hold, error) {
	l.mu.Lock()
	keys := make([]holdKey, 0, len(l.sessions[sessionID]))
	for _, key := range l.sessions[sessionID] {
		keys = append(keys, key)
	}
	l.mu.Unlock()

	now := l.now()
	holds := make([]entity.Hold, 0, len(keys))
	for _, key := range keys {
		slot := l.slot(key)
		slot.mu.Lock()
		if h := slot.hold; h != nil && h.SessionID == sessionID && !h.Expired(now) {
			holds = append(holds, *h)
		}
		slot.mu.Unlock()
	}

	sort.Slice(holds, func(i, j int) bool { return holds[i].SeatID < holds[j].SeatID })
	return holds, nil
}

func (l *memoryLedger) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	reclaimed := 0
	l.slots.Range(func(k, v any) bool {
		if ctx.Err() != nil {
			return false
		}

		slot := v.(*holdSlot)
		slot.mu.Lock()
		if h := slot.hold; h != nil && h.Expired(now) {
			l.unindex(h.SessionID, k.(holdKey))
			slot.hold = nil
			reclaimed++
		}
		slot.mu.Unlock()
		return true
	})

	if reclaimed > 0 {
		l.log.Info("Expired holds swept", zap.Int("reclaimed", reclaimed))
	}
	return reclaimed, ctx.Err()
}
