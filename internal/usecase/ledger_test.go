package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"cinema-checkout/internal/data/entity"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ttl = 300 * time.Second

func TestLedger_ConcurrentHoldOnSameSeatHasOneWinner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sessions := []uuid.UUID{uuid.New(), uuid.New()}
	var mu sync.Mutex
	winners := make(map[uuid.UUID]int)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(sessionID uuid.UUID) {
			defer wg.Done()
			_, err := f.svc.Ledger.TryHold(ctx, sessionID, demoRef, "B3", ttl)
			if err != nil {
				assert.ErrorIs(t, err, entity.ErrSeatUnavailable)
				return
			}
			mu.Lock()
			winners[sessionID]++
			mu.Unlock()
		}(sessions[i%2])
	}
	wg.Wait()

	require.Len(t, winners, 1, "only one session may own the seat")

	var owner uuid.UUID
	for id := range winners {
		owner = id
	}
	holds, err := f.svc.Ledger.HoldsForSession(ctx, owner)
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, "B3", holds[0].SeatID)

	loser := sessions[0]
	if loser == owner {
		loser = sessions[1]
	}
	holds, err = f.svc.Ledger.HoldsForSession(ctx, loser)
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestLedger_SameSessionRefreshesHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := uuid.New()

	first, err := f.svc.Ledger.TryHold(ctx, session, demoRef, "A1", ttl)
	require.NoError(t, err)

	f.clock.Advance(100 * time.Second)

	second, err := f.svc.Ledger.TryHold(ctx, session, demoRef, "A1", ttl)
	require.NoError(t, err)
	assert.Equal(t, first.ExpiresAt.Add(100*time.Second), second.ExpiresAt)

	holds, err := f.svc.Ledger.HoldsForSession(ctx, session)
	require.NoError(t, err)
	assert.Len(t, holds, 1)
}

func TestLedger_ExpiredHoldCanBeTakenByAnotherSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	_, err := f.svc.Ledger.TryHold(ctx, a, demoRef, "C7", ttl)
	require.NoError(t, err)

	f.clock.Advance(299 * time.Second)
	_, err = f.svc.Ledger.TryHold(ctx, b, demoRef, "C7", ttl)
	assert.ErrorIs(t, err, entity.ErrSeatUnavailable)

	f.clock.Advance(2 * time.Second) // t=301s
	hold, err := f.svc.Ledger.TryHold(ctx, b, demoRef, "C7", ttl)
	require.NoError(t, err)
	assert.Equal(t, b, hold.SessionID)

	holdsA, err := f.svc.Ledger.HoldsForSession(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, holdsA)
}

func TestLedger_HoldExpiresExactlyAtDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := uuid.New()

	_, err := f.svc.Ledger.TryHold(ctx, session, demoRef, "A4", ttl)
	require.NoError(t, err)

	f.clock.Advance(ttl)

	holds, err := f.svc.Ledger.HoldsForSession(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestLedger_BookedSeatCannotBeHeld(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SeatMap.MarkBooked(ctx, demoRef, []string{"E1"}))

	_, err := f.svc.Ledger.TryHold(ctx, uuid.New(), demoRef, "E1", ttl)
	assert.ErrorIs(t, err, entity.ErrSeatUnavailable)
}

func TestLedger_ReleaseOnlyAffectsOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	_, err := f.svc.Ledger.TryHold(ctx, owner, demoRef, "A2", ttl)
	require.NoError(t, err)

	require.NoError(t, f.svc.Ledger.Release(ctx, other, "A2"))
	_, err = f.svc.Ledger.TryHold(ctx, other, demoRef, "A2", ttl)
	assert.ErrorIs(t, err, entity.ErrSeatUnavailable)

	require.NoError(t, f.svc.Ledger.Release(ctx, owner, "A2"))
	_, err = f.svc.Ledger.TryHold(ctx, other, demoRef, "A2", ttl)
	assert.NoError(t, err)
}

func TestLedger_ReleaseSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := uuid.New()

	for _, seat := range []string{"A1", "A2", "A3"} {
		_, err := f.svc.Ledger.TryHold(ctx, session, demoRef, seat, ttl)
		require.NoError(t, err)
	}

	n, err := f.svc.Ledger.ReleaseSession(ctx, session)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	holds, err := f.svc.Ledger.HoldsForSession(ctx, session)
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestLedger_SweepExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	early, late := uuid.New(), uuid.New()

	_, err := f.svc.Ledger.TryHold(ctx, early, demoRef, "B1", ttl)
	require.NoError(t, err)
	_, err = f.svc.Ledger.TryHold(ctx, early, demoRef, "B2", ttl)
	require.NoError(t, err)

	f.clock.Advance(200 * time.Second)
	_, err = f.svc.Ledger.TryHold(ctx, late, demoRef, "B3", ttl)
	require.NoError(t, err)

	f.clock.Advance(150 * time.Second)
	n, err := f.svc.Ledger.SweepExpired(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	holds, err := f.svc.Ledger.HoldsForSession(ctx, late)
	require.NoError(t, err)
	assert.Len(t, holds, 1)

	n, err = f.svc.Ledger.SweepExpired(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLedger_RejectsNonPositiveTTL(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ledger.TryHold(context.Background(), uuid.New(), demoRef, "A1", 0)
	assert.Error(t, err)
}
