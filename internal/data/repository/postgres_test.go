package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/pkg/database"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nopLogger() *zap.Logger { return zap.NewNop() }

// newPostgresRepo connects to POSTGRES_URL and seeds a showtime unique to this run
func newPostgresRepo(t *testing.T) (*Repository, entity.ShowtimeRef) {
	t.Helper()

	url := os.Getenv("POSTGRES_URL")
	if url == "" {
		t.Skip("POSTGRES_URL not set")
	}

	ctx := context.Background()
	db, err := database.Connect(ctx, url, 4)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, database.Migrate(ctx, db))

	seed := DemoSeed()
	suffix := uuid.NewString()[:8]
	seed.Showtimes[0].ShowtimeID = "st-" + suffix
	seed.Showtimes[0].ScreenID = "screen-" + suffix
	require.NoError(t, ApplySeed(ctx, db, seed))
	// applying twice is harmless
	require.NoError(t, ApplySeed(ctx, db, seed))

	st := seed.Showtimes[0]
	return NewRepository(db, nopLogger()), entity.ShowtimeRef{
		PlaceID:    st.PlaceID,
		ScreenID:   st.ScreenID,
		ShowtimeID: st.ShowtimeID,
	}
}

func TestPostgresRepository_CatalogAndCommit(t *testing.T) {
	repo, ref := newPostgresRepo(t)
	ctx := context.Background()

	showtime, err := repo.Showtime.FindByID(ctx, ref.ShowtimeID)
	require.NoError(t, err)
	require.NotNil(t, showtime)
	assert.Equal(t, ref, showtime.Ref)
	assert.Equal(t, int64(400), showtime.Prices[entity.SeatTypePlatinum])

	layout, err := repo.Showtime.FindSeatLayout(ctx, ref.ScreenID)
	require.NoError(t, err)
	assert.Len(t, layout, 48)

	userID := "pg-" + uuid.NewString()
	b := testBooking(userID, time.Now().UTC().Truncate(time.Microsecond), "A1", "A2")
	b.Showtime = ref
	b.Food = []entity.BookingFood{{ItemID: "popcorn", Name: "Popcorn", UnitPrice: 120, Quantity: 2}}

	_, err = repo.Booking.Commit(ctx, b)
	require.NoError(t, err)

	again, err := repo.Booking.Commit(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, b.ID, again.ID)

	found, err := repo.Booking.FindByID(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.ElementsMatch(t, []string{"A1", "A2"}, found.SeatIDs())
	require.Len(t, found.Food, 1)
	assert.Equal(t, 2, found.Food[0].Quantity)

	booked, err := repo.Seat.FindBookedSeatIDs(ctx, ref.ShowtimeID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A1", "A2"}, booked)

	clash := testBooking(userID, time.Now().UTC(), "A3", "A2")
	clash.Showtime = ref
	_, err = repo.Booking.Commit(ctx, clash)
	assert.ErrorIs(t, err, entity.ErrSeatAlreadyBooked)

	booked, err = repo.Seat.FindBookedSeatIDs(ctx, ref.ShowtimeID)
	require.NoError(t, err)
	assert.NotContains(t, booked, "A3")

	count, err := repo.Booking.CountByUserID(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPostgresRepository_Payments(t *testing.T) {
	repo, _ := newPostgresRepo(t)
	ctx := context.Background()

	a := &entity.PaymentAttempt{
		Base:         entity.Base{ID: uuid.New(), CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC()},
		SessionID:    uuid.New(),
		UserID:       "pg-user",
		Amount:       540,
		Currency:     "inr",
		Status:       entity.PaymentStatusPending,
		Gateway:      "mock",
		ClientSecret: "never-stored",
		RefundState:  entity.RefundNone,
	}
	require.NoError(t, repo.Payment.Save(ctx, a))

	a.Status = entity.PaymentStatusSucceeded
	a.GatewayRef = "pi_123"
	a.RefundState = entity.RefundRequired
	require.NoError(t, repo.Payment.Save(ctx, a))

	found, err := repo.Payment.FindByID(ctx, a.ID)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, entity.PaymentStatusSucceeded, found.Status)
	assert.Equal(t, "pi_123", found.GatewayRef)
	assert.Empty(t, found.ClientSecret)

	refunds, err := repo.Payment.FindRefundRequired(ctx)
	require.NoError(t, err)
	ids := make([]uuid.UUID, len(refunds))
	for i, r := range refunds {
		ids[i] = r.ID
	}
	assert.Contains(t, ids, a.ID)
}
