package repository

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

var demoRef = entity.ShowtimeRef{PlaceID: "pvr-forum", ScreenID: "audi-1", ShowtimeID: "st-1001"}

func newMemoryRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewMemoryRepository(DemoSeed(), zap.NewNop())
	require.NoError(t, err)
	return repo
}

func testBooking(userID string, createdAt time.Time, seats ...string) *entity.Booking {
	b := &entity.Booking{
		Base:      entity.Base{ID: uuid.New(), CreatedAt: createdAt, UpdatedAt: createdAt},
		OrderID:   "BOOK-TEST",
		SessionID: uuid.New(),
		UserID:    userID,
		AttemptID: uuid.New(),
		Showtime:  demoRef,
		Status:    entity.BookingStatusConfirmed,
	}
	for _, id := range seats {
		b.Seats = append(b.Seats, entity.BookingSeat{SeatID: id, Type: entity.SeatTypeSilver, Price: 150})
		b.SeatAmount += 150
	}
	b.TotalAmount = b.SeatAmount
	return b
}

func TestMemoryRepository_Catalog(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	showtime, err := repo.Showtime.FindByID(ctx, "st-1001")
	require.NoError(t, err)
	require.NotNil(t, showtime)
	assert.Equal(t, demoRef, showtime.Ref)
	assert.Equal(t, int64(250), showtime.Prices[entity.SeatTypeGold])

	// callers get a copy of the price table
	showtime.Prices[entity.SeatTypeGold] = 1
	again, err := repo.Showtime.FindByID(ctx, "st-1001")
	require.NoError(t, err)
	assert.Equal(t, int64(250), again.Prices[entity.SeatTypeGold])

	missing, err := repo.Showtime.FindByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	layout, err := repo.Showtime.FindSeatLayout(ctx, "audi-1")
	require.NoError(t, err)
	assert.Len(t, layout, 48)

	menu, err := repo.Food.FindAllActive(ctx)
	require.NoError(t, err)
	require.Len(t, menu, 3)
	assert.Equal(t, []string{"Cola", "Nachos", "Popcorn"}, []string{menu[0].Name, menu[1].Name, menu[2].Name})
}

func TestMemoryRepository_CommitIsIdempotent(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	b := testBooking("user-1", time.Now(), "A1", "A2")

	stored, err := repo.Booking.Commit(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, b.ID, stored.ID)

	again, err := repo.Booking.Commit(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)

	booked, err := repo.Seat.FindBookedSeatIDs(ctx, demoRef.ShowtimeID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, booked)

	count, err := repo.Booking.CountByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemoryRepository_CommitRejectsOccupiedSeat(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	_, err := repo.Booking.Commit(ctx, testBooking("user-1", time.Now(), "B1"))
	require.NoError(t, err)

	second := testBooking("user-2", time.Now(), "B2", "B1")
	_, err = repo.Booking.Commit(ctx, second)
	assert.ErrorIs(t, err, entity.ErrSeatAlreadyBooked)

	found, err := repo.Booking.FindByID(ctx, second.ID)
	require.NoError(t, err)
	assert.Nil(t, found)

	booked, err := repo.Seat.FindBookedSeatIDs(ctx, demoRef.ShowtimeID)
	require.NoError(t, err)
	assert.Equal(t, []string{"B1"}, booked)
}

func TestMemoryRepository_UserBookingsNewestFirst(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 1, 10, 0, 0, 0, time.UTC)

	var ids []uuid.UUID
	for i, seat := range []string{"C1", "C2", "C3"} {
		b := testBooking("user-1", base.Add(time.Duration(i)*time.Hour), seat)
		_, err := repo.Booking.Commit(ctx, b)
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	page, err := repo.Booking.FindByUserID(ctx, "user-1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)
	assert.Equal(t, ids[1], page[1].ID)

	page, err = repo.Booking.FindByUserID(ctx, "user-1", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, ids[0], page[0].ID)

	page, err = repo.Booking.FindByUserID(ctx, "user-1", 2, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryRepository_CancelKeepsOccupancy(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()

	b := testBooking("user-1", time.Now(), "D1")
	_, err := repo.Booking.Commit(ctx, b)
	require.NoError(t, err)

	require.NoError(t, repo.Booking.Cancel(ctx, b.ID))

	found, err := repo.Booking.FindByID(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.BookingStatusCancelled, found.Status)

	booked, err := repo.Seat.FindBookedSeatIDs(ctx, demoRef.ShowtimeID)
	require.NoError(t, err)
	assert.Contains(t, booked, "D1")

	assert.ErrorIs(t, repo.Booking.Cancel(ctx, uuid.New()), entity.ErrNotFound)
}

func TestMemoryRepository_Payments(t *testing.T) {
	repo := newMemoryRepo(t)
	ctx := context.Background()
	now := time.Now()

	older := &entity.PaymentAttempt{
		Base:         entity.Base{ID: uuid.New(), UpdatedAt: now.Add(-time.Minute)},
		Status:       entity.PaymentStatusSucceeded,
		ClientSecret: "secret",
		RefundState:  entity.RefundRequired,
	}
	newer := &entity.PaymentAttempt{
		Base:        entity.Base{ID: uuid.New(), UpdatedAt: now},
		Status:      entity.PaymentStatusSucceeded,
		RefundState: entity.RefundRequired,
	}
	settled := &entity.PaymentAttempt{
		Base:        entity.Base{ID: uuid.New(), UpdatedAt: now},
		Status:      entity.PaymentStatusSucceeded,
		RefundState: entity.RefundNone,
	}
	for _, a := range []*entity.PaymentAttempt{newer, settled, older} {
		require.NoError(t, repo.Payment.Save(ctx, a))
	}

	found, err := repo.Payment.FindByID(ctx, older.ID)
	require.NoError(t, err)
	assert.Empty(t, found.ClientSecret, "client secret is never stored")

	refunds, err := repo.Payment.FindRefundRequired(ctx)
	require.NoError(t, err)
	require.Len(t, refunds, 2)
	assert.Equal(t, older.ID, refunds[0].ID)
	assert.Equal(t, newer.ID, refunds[1].ID)

	missing, err := repo.Payment.FindByID(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
