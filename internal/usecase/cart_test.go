package usecase

import (
	"context"
	"testing"
	"time"

	"cinema-checkout/internal/data/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCart(f *fixture) CartService {
	return NewCartService(f.svc.Ledger, f.svc.SeatMap, f.repo, f.config.Checkout.HoldTTL, zap.NewNop())
}

func TestCart_TotalsSeatsAndFood(t *testing.T) {
	f := newFixture(t)
	cart := newTestCart(f)
	ctx := context.Background()
	session := uuid.New()
	cart.Open(session, demoRef)

	_, err := cart.AddSeat(ctx, session, "A1")
	require.NoError(t, err)
	_, err = cart.AddSeat(ctx, session, "A2")
	require.NoError(t, err)
	require.NoError(t, cart.SetFoodQty(ctx, session, "popcorn", 2))

	totals, err := cart.Totals(session)
	require.NoError(t, err)
	assert.Equal(t, entity.CartTotals{SeatAmount: 300, FoodAmount: 240, TotalAmount: 540}, totals)

	snap, err := cart.Snapshot(session)
	require.NoError(t, err)
	require.Len(t, snap.Lines, 3)
	assert.Equal(t, "Seat A1 (silver)", snap.Lines[0].Name)
	assert.Equal(t, []string{"A1", "A2"}, snap.SeatIDs())
}

func TestCart_AddSameSeatTwiceKeepsOneLine(t *testing.T) {
	f := newFixture(t)
	cart := newTestCart(f)
	ctx := context.Background()
	session := uuid.New()
	cart.Open(session, demoRef)

	_, err := cart.AddSeat(ctx, session, "C1")
	require.NoError(t, err)
	_, err = cart.AddSeat(ctx, session, "C1")
	require.NoError(t, err)

	totals, err := cart.Totals(session)
	require.NoError(t, err)
	assert.Equal(t, int64(250), totals.SeatAmount)
}

func TestCart_SeatHeldElsewhere(t *testing.T) {
	f := newFixture(t)
	cart := newTestCart(f)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	cart.Open(a, demoRef)
	cart.Open(b, demoRef)

	_, err := cart.AddSeat(ctx, a, "B5")
	require.NoError(t, err)

	_, err = cart.AddSeat(ctx, b, "B5")
	assert.ErrorIs(t, err, entity.ErrSeatUnavailable)

	snap, err := cart.Snapshot(b)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
}

func TestCart_FoodQuantityRules(t *testing.T) {
	f := newFixture(t)
	cart := newTestCart(f)
	ctx := context.Background()
	session := uuid.New()
	cart.Open(session, demoRef)

	err := cart.SetFoodQty(ctx, session, "popcorn", -1)
	assert.ErrorIs(t, err, entity.ErrInvalidQuantity)

	err = cart.SetFoodQty(ctx, session, "caviar", 1)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	require.NoError(t, cart.SetFoodQty(ctx, session, "nachos", 1))
	require.NoError(t, cart.SetFoodQty(ctx, session, "nachos", 3))

	totals, err := cart.Totals(session)
	require.NoError(t, err)
	assert.Equal(t, int64(540), totals.FoodAmount)

	require.NoError(t, cart.SetFoodQty(ctx, session, "nachos", 0))
	snap, err := cart.Snapshot(session)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)

	// removing an absent item is a no-op
	assert.NoError(t, cart.SetFoodQty(ctx, session, "cola", 0))
}

func TestCart_UnknownSeatAndSession(t *testing.T) {
	f := newFixture(t)
	cart := newTestCart(f)
	ctx := context.Background()
	session := uuid.New()

	_, err := cart.AddSeat(ctx, session, "A1")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	cart.Open(session, demoRef)
	_, err = cart.AddSeat(ctx, session, "Q42")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestCart_ReconcileDropsExpiredSeats(t *testing.T) {
	f := newFixture(t)
	cart := newTestCart(f)
	ctx := context.Background()
	session := uuid.New()
	cart.Open(session, demoRef)

	_, err := cart.AddSeat(ctx, session, "D1")
	require.NoError(t, err)
	require.NoError(t, cart.SetFoodQty(ctx, session, "cola", 1))

	f.clock.Advance(200 * time.Second)
	_, err = cart.AddSeat(ctx, session, "D2")
	require.NoError(t, err)

	f.clock.Advance(150 * time.Second)
	dropped, err := cart.Reconcile(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, []string{"D1"}, dropped)

	snap, err := cart.Snapshot(session)
	require.NoError(t, err)
	assert.Equal(t, []string{"D2"}, snap.SeatIDs())
	assert.Equal(t, int64(90), snap.Totals().FoodAmount)
}

func TestCart_RefreshHoldsDropsStolenSeats(t *testing.T) {
	f := newFixture(t)
	cart := newTestCart(f)
	ctx := context.Background()
	mine, thief := uuid.New(), uuid.New()
	cart.Open(mine, demoRef)

	_, err := cart.AddSeat(ctx, mine, "E1")
	require.NoError(t, err)
	_, err = cart.AddSeat(ctx, mine, "E2")
	require.NoError(t, err)

	f.clock.Advance(301 * time.Second)
	_, err = f.svc.Ledger.TryHold(ctx, thief, demoRef, "E2", ttl)
	require.NoError(t, err)

	lost, err := cart.RefreshHolds(ctx, mine)
	require.NoError(t, err)
	assert.Equal(t, []string{"E2"}, lost)

	holds, err := f.svc.Ledger.HoldsForSession(ctx, mine)
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, f.clock.Now().Add(ttl), holds[0].ExpiresAt)
}

func TestCart_DiscardReleasesHolds(t *testing.T) {
	f := newFixture(t)
	cart := newTestCart(f)
	ctx := context.Background()
	session := uuid.New()
	cart.Open(session, demoRef)

	_, err := cart.AddSeat(ctx, session, "A9")
	require.NoError(t, err)

	require.NoError(t, cart.Discard(ctx, session))

	_, err = cart.Snapshot(session)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = f.svc.Ledger.TryHold(ctx, uuid.New(), demoRef, "A9", ttl)
	assert.NoError(t, err)
}
