package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"cinema-checkout/internal/data/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeatMap_SnapshotPricesSeatsByType(t *testing.T) {
	f := newFixture(t)

	seats, err := f.svc.SeatMap.Snapshot(context.Background(), demoRef)
	require.NoError(t, err)
	assert.Len(t, seats, 48)

	byID := make(map[string]entity.Seat, len(seats))
	for _, s := range seats {
		byID[s.SeatID] = s
		assert.False(t, s.Booked)
	}

	assert.Equal(t, int64(150), byID["A1"].Price)
	assert.Equal(t, entity.SeatTypeGold, byID["C4"].Type)
	assert.Equal(t, int64(250), byID["C4"].Price)
	assert.Equal(t, int64(400), byID["E8"].Price)
	assert.Equal(t, "A1", seats[0].SeatID)
}

func TestSeatMap_UnknownShowtimeAndSeat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SeatMap.Showtime(ctx, "st-missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	_, err = f.svc.SeatMap.Seat(ctx, demoRef, "Z99")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	wrongScreen := demoRef
	wrongScreen.ScreenID = "audi-9"
	_, err = f.svc.SeatMap.Snapshot(ctx, wrongScreen)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSeatMap_MarkBookedIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SeatMap.MarkBooked(ctx, demoRef, []string{"A1"}))

	err := f.svc.SeatMap.MarkBooked(ctx, demoRef, []string{"A2", "A1"})
	assert.ErrorIs(t, err, entity.ErrSeatAlreadyBooked)

	booked, err := f.svc.SeatMap.IsBooked(ctx, demoRef, "A2")
	require.NoError(t, err)
	assert.False(t, booked, "A2 must stay free when the batch fails")

	ids, err := f.repo.Seat.FindBookedSeatIDs(ctx, demoRef.ShowtimeID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, ids)
}

func TestSeatMap_MarkBookedWithCommitFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	boom := errors.New("disk full")
	err := f.svc.SeatMap.MarkBookedWith(ctx, demoRef, []string{"B1", "B2"}, func(context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)

	for _, id := range []string{"B1", "B2"} {
		booked, err := f.svc.SeatMap.IsBooked(ctx, demoRef, id)
		require.NoError(t, err)
		assert.False(t, booked)
	}
}

func TestSeatMap_ConcurrentOverlappingBatchesBookOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// alternate orderings to exercise lock ordering
			batch := []string{"D5", "D6"}
			if i%2 == 1 {
				batch = []string{"D6", "D5"}
			}
			if err := f.svc.SeatMap.MarkBooked(ctx, demoRef, batch); err == nil {
				wins.Add(1)
			} else {
				assert.ErrorIs(t, err, entity.ErrSeatAlreadyBooked)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestSeatMap_ConcurrentDisjointBatchesAllSucceed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for col := 1; col <= 10; col++ {
		wg.Add(1)
		go func(col int) {
			defer wg.Done()
			batch := []string{fmt.Sprintf("A%d", col), fmt.Sprintf("B%d", col)}
			assert.NoError(t, f.svc.SeatMap.MarkBooked(ctx, demoRef, batch))
		}(col)
	}
	wg.Wait()

	seats, err := f.svc.SeatMap.Snapshot(ctx, demoRef)
	require.NoError(t, err)

	booked := 0
	for _, s := range seats {
		if s.Booked {
			booked++
		}
	}
	assert.Equal(t, 20, booked)
}
