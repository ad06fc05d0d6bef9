package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/internal/data/repository"
	"cinema-checkout/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// SeatMap owns committed seat occupancy per showtime
type SeatMap interface {
	Showtime(ctx context.Context, showtimeID string) (*entity.Showtime, error)
	Snapshot(ctx context.Context, ref entity.ShowtimeRef) ([]entity.Seat, error)
	Seat(ctx context.Context, ref entity.ShowtimeRef, seatID string) (entity.Seat, error)
	IsBooked(ctx context.Context, ref entity.ShowtimeRef, seatID string) (bool, error)

	// MarkBooked flips every seat or none; ErrSeatAlreadyBooked if any is taken
	MarkBooked(ctx context.Context, ref entity.ShowtimeRef, seatIDs []string) error

	// MarkBookedWith runs commit while all seat locks are held. Flags flip
	// only if commit returns nil.
	MarkBookedWith(ctx context.Context, ref entity.ShowtimeRef, seatIDs []string, commit func(ctx context.Context) error) error
}

type seatSlot struct {
	mu   sync.Mutex
	seat entity.Seat
}

// seatGrid is built once per showtime; the maps are read-only after load
type seatGrid struct {
	showtime *entity.Showtime
	order    []*seatSlot
	byID     map[string]*seatSlot
}

type seatMap struct {
	repo *repository.Repository
	log  *zap.Logger

	mu    sync.RWMutex
	grids map[string]*seatGrid
	loads singleflight.Group
}

func NewSeatMap(repo *repository.Repository, log *zap.Logger) SeatMap {
	return &seatMap{
		repo:  repo,
		log:   log.With(zap.String("service", "seatmap")),
		grids: make(map[string]*seatGrid),
	}
}

func (m *seatMap) grid(ctx context.Context, showtimeID string) (*seatGrid, error) {
	m.mu.RLock()
	g := m.grids[showtimeID]
	m.mu.RUnlock()
	if g != nil {
		return g, nil
	}

	v, err, _ := m.loads.Do(showtimeID, func() (any, error) {
		m.mu.RLock()
		g := m.grids[showtimeID]
		m.mu.RUnlock()
		if g != nil {
			return g, nil
		}

		g, err := m.load(ctx, showtimeID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.grids[showtimeID] = g
		m.mu.Unlock()
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*seatGrid), nil
}

func (m *seatMap) load(ctx context.Context, showtimeID string) (*seatGrid, error) {
	showtime, err := m.repo.Showtime.FindByID(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("load showtime %s: %w", showtimeID, err)
	}
	if showtime == nil {
		return nil, fmt.Errorf("showtime %s: %w", showtimeID, entity.ErrNotFound)
	}

	layout, err := m.repo.Showtime.FindSeatLayout(ctx, showtime.Ref.ScreenID)
	if err != nil {
		return nil, fmt.Errorf("load layout for screen %s: %w", showtime.Ref.ScreenID, err)
	}
	if len(layout) == 0 {
		return nil, fmt.Errorf("screen %s has no seat layout: %w", showtime.Ref.ScreenID, entity.ErrNotFound)
	}

	booked, err := m.repo.Seat.FindBookedSeatIDs(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("load occupancy for showtime %s: %w", showtimeID, err)
	}
	bookedSet := make(map[string]bool, len(booked))
	for _, id := range booked {
		bookedSet[id] = true
	}

	sort.SliceStable(layout, func(i, j int) bool {
		if layout[i].Row != layout[j].Row {
			return layout[i].Row < layout[j].Row
		}
		return layout[i].Column < layout[j].Column
	})

	g := &seatGrid{
		showtime: showtime,
		order:    make([]*seatSlot, 0, len(layout)),
		byID:     make(map[string]*seatSlot, len(layout)),
	}
	for _, seat := range layout {
		price, ok := showtime.PriceFor(seat.Type)
		if !ok {
			return nil, fmt.Errorf("showtime %s has no price for %s seats", showtimeID, seat.Type)
		}

		slot := &seatSlot{seat: *seat}
		slot.seat.Price = price
		slot.seat.Booked = bookedSet[seat.SeatID]

		g.order = append(g.order, slot)
		g.byID[seat.SeatID] = slot
	}

	m.log.Info("Seat grid loaded",
		zap.String("showtime", showtime.Ref.String()),
		zap.Int("seats", len(g.order)),
		zap.Int("booked", len(booked)),
	)

	return g, nil
}

// invalidate drops a grid so the next access reloads occupancy from storage.
// Used when storage rejects a commit the in-memory flags allowed, i.e. another
// instance booked the seat.
func (m *seatMap) invalidate(showtimeID string) {
	m.mu.Lock()
	delete(m.grids, showtimeID)
	m.mu.Unlock()
	m.loads.Forget(showtimeID)
}

func (m *seatMap) gridFor(ctx context.Context, ref entity.ShowtimeRef) (*seatGrid, error) {
	g, err := m.grid(ctx, ref.ShowtimeID)
	if err != nil {
		return nil, err
	}
	if ref.ScreenID != "" && ref.ScreenID != g.showtime.Ref.ScreenID {
		return nil, fmt.Errorf("showtime %s is not on screen %s: %w", ref.ShowtimeID, ref.ScreenID, entity.ErrNotFound)
	}
	return g, nil
}

func (m *seatMap) Showtime(ctx context.Context, showtimeID string) (*entity.Showtime, error) {
	g, err := m.grid(ctx, showtimeID)
	if err != nil {
		return nil, err
	}
	st := *g.showtime
	return &st, nil
}

func (m *seatMap) Snapshot(ctx context.Context, ref entity.ShowtimeRef) ([]entity.Seat, error) {
	g, err := m.gridFor(ctx, ref)
	if err != nil {
		return nil, err
	}

	seats := make([]entity.Seat, len(g.order))
	for i, slot := range g.order {
		slot.mu.Lock()
		seats[i] = slot.seat
		slot.mu.Unlock()
	}
	return seats, nil
}

func (m *seatMap) Seat(ctx context.Context, ref entity.ShowtimeRef, seatID string) (entity.Seat, error) {
	g, err := m.gridFor(ctx, ref)
	if err != nil {
		return entity.Seat{}, err
	}

	slot, ok := g.byID[seatID]
	if !ok {
		return entity.Seat{}, fmt.Errorf("seat %s: %w", seatID, entity.ErrNotFound)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()
	return slot.seat, nil
}

func (m *seatMap) IsBooked(ctx context.Context, ref entity.ShowtimeRef, seatID string) (bool, error) {
	seat, err := m.Seat(ctx, ref, seatID)
	if err != nil {
		return false, err
	}
	return seat.Booked, nil
}

func (m *seatMap) MarkBooked(ctx context.Context, ref entity.ShowtimeRef, seatIDs []string) error {
	return m.MarkBookedWith(ctx, ref, seatIDs, func(ctx context.Context) error {
		g, err := m.gridFor(ctx, ref)
		if err != nil {
			return err
		}
		return m.repo.Seat.MarkBooked(ctx, g.showtime.Ref, seatIDs)
	})
}

func (m *seatMap) MarkBookedWith(ctx context.Context, ref entity.ShowtimeRef, seatIDs []string, commit func(ctx context.Context) error) error {
	ids := sortedUnique(seatIDs)
	if len(ids) == 0 {
		return fmt.Errorf("mark booked: no seats given")
	}

	g, err := m.gridFor(ctx, ref)
	if err != nil {
		return err
	}

	slots := make([]*seatSlot, len(ids))
	for i, id := range ids {
		slot, ok := g.byID[id]
		if !ok {
			return fmt.Errorf("seat %s: %w", id, entity.ErrNotFound)
		}
		slots[i] = slot
	}

	ctx, span := telemetry.StartSpan(ctx, "seatmap.mark_booked",
		attribute.String("showtime_id", ref.ShowtimeID),
		attribute.StringSlice("seat_ids", ids),
	)
	defer span.End()

	// sorted acquisition order, so two batches can never wait on each other in a cycle
	for _, slot := range slots {
		slot.mu.Lock()
	}
	defer func() {
		for i := len(slots) - 1; i >= 0; i-- {
			slots[i].mu.Unlock()
		}
	}()

	for _, slot := range slots {
		if slot.seat.Booked {
			err := fmt.Errorf("seat %s: %w", slot.seat.SeatID, entity.ErrSeatAlreadyBooked)
			telemetry.RecordError(span, err)
			return err
		}
	}

	if commit != nil {
		if err := commit(ctx); err != nil {
			telemetry.RecordError(span, err)
			if errors.Is(err, entity.ErrSeatAlreadyBooked) {
				m.log.Warn("Storage rejected seats the grid showed free, reloading grid",
					zap.String("showtime_id", ref.ShowtimeID),
					zap.Strings("seat_ids", ids),
				)
				m.invalidate(ref.ShowtimeID)
			}
			return err
		}
	}

	for _, slot := range slots {
		slot.seat.Booked = true
	}

	m.log.Info("Seats marked booked",
		zap.String("showtime_id", ref.ShowtimeID),
		zap.Strings("seat_ids", ids),
	)
	return nil
}

func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
