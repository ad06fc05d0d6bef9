package usecase

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"cinema-checkout/internal/data/entity"
	"cinema-checkout/internal/data/repository"
	"cinema-checkout/internal/gateway"
	"cinema-checkout/pkg/database"
	"cinema-checkout/pkg/utils"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newRedisFixture runs the engine on the Redis ledger against REDIS_ADDR.
// The showtime id is unique per run so leftover keys never collide.
func newRedisFixture(t *testing.T) (*fixture, entity.ShowtimeRef) {
	t.Helper()

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := database.InitRedis(ctx, utils.RedisConfig{Addr: addr})
	require.NoError(t, err)

	seed := repository.DemoSeed()
	seed.Showtimes[0].ShowtimeID = "st-" + uuid.NewString()[:8]
	ref := entity.ShowtimeRef{
		PlaceID:    seed.Showtimes[0].PlaceID,
		ScreenID:   seed.Showtimes[0].ScreenID,
		ShowtimeID: seed.Showtimes[0].ShowtimeID,
	}

	repo, err := repository.NewMemoryRepository(seed, zap.NewNop())
	require.NoError(t, err)

	f := &fixture{
		repo:   repo,
		clock:  newFakeClock(),
		gw:     gateway.NewMockGateway(),
		pub:    &recordingPublisher{},
		config: testConfig(),
	}
	f.config.Checkout.Ledger = "redis"

	f.svc, err = NewService(repo, Deps{
		Gateway:   f.gw,
		Publisher: f.pub,
		Redis:     client,
		Clock:     f.clock.Now,
	}, f.config, zap.NewNop())
	require.NoError(t, err)

	t.Cleanup(func() {
		cleanupRedisHolds(client, ref.ShowtimeID)
		client.Close()
	})
	return f, ref
}

func cleanupRedisHolds(client *redis.Client, showtimeID string) {
	ctx := context.Background()
	prefix := redisHoldKey(showtimeID, "")

	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		client.Del(ctx, iter.Val())
	}

	members, _ := client.ZRange(ctx, holdExpiryKey, 0, -1).Result()
	for _, m := range members {
		if len(m) > len(prefix) && m[:len(prefix)] == prefix {
			client.ZRem(ctx, holdExpiryKey, m)
		}
	}
}

func TestRedisLedger_HoldLifecycle(t *testing.T) {
	f, ref := newRedisFixture(t)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	hold, err := f.svc.Ledger.TryHold(ctx, a, ref, "A1", ttl)
	require.NoError(t, err)
	assert.Equal(t, a, hold.SessionID)

	_, err = f.svc.Ledger.TryHold(ctx, b, ref, "A1", ttl)
	assert.ErrorIs(t, err, entity.ErrSeatUnavailable)

	// refresh by the owner
	f.clock.Advance(100 * time.Second)
	_, err = f.svc.Ledger.TryHold(ctx, a, ref, "A1", ttl)
	require.NoError(t, err)

	f.clock.Advance(250 * time.Second)
	_, err = f.svc.Ledger.TryHold(ctx, b, ref, "A1", ttl)
	assert.ErrorIs(t, err, entity.ErrSeatUnavailable)

	f.clock.Advance(51 * time.Second)
	_, err = f.svc.Ledger.TryHold(ctx, b, ref, "A1", ttl)
	require.NoError(t, err)

	holdsA, err := f.svc.Ledger.HoldsForSession(ctx, a)
	require.NoError(t, err)
	assert.Empty(t, holdsA)

	holdsB, err := f.svc.Ledger.HoldsForSession(ctx, b)
	require.NoError(t, err)
	require.Len(t, holdsB, 1)
	assert.Equal(t, ref, holdsB[0].Showtime)
}

func TestRedisLedger_ReleaseAndSweep(t *testing.T) {
	f, ref := newRedisFixture(t)
	ctx := context.Background()
	session, other := uuid.New(), uuid.New()

	for _, seat := range []string{"B1", "B2", "B3"} {
		_, err := f.svc.Ledger.TryHold(ctx, session, ref, seat, ttl)
		require.NoError(t, err)
	}

	require.NoError(t, f.svc.Ledger.Release(ctx, other, "B1"))
	require.NoError(t, f.svc.Ledger.Release(ctx, session, "B1"))

	holds, err := f.svc.Ledger.HoldsForSession(ctx, session)
	require.NoError(t, err)
	assert.Len(t, holds, 2)

	f.clock.Advance(ttl)
	n, err := f.svc.Ledger.SweepExpired(ctx, f.clock.Now())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)

	n, err = f.svc.Ledger.ReleaseSession(ctx, session)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.svc.Ledger.TryHold(ctx, other, ref, "B2", ttl)
	assert.NoError(t, err)
}

func TestRedisLedger_ConcurrentHoldHasOneWinner(t *testing.T) {
	f, ref := newRedisFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	winners := make(map[uuid.UUID]bool)
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			session := uuid.New()
			if _, err := f.svc.Ledger.TryHold(ctx, session, ref, "C5", ttl); err == nil {
				mu.Lock()
				winners[session] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, winners, 1)
}

func TestRedisLedger_BookedSeatCannotBeHeld(t *testing.T) {
	f, ref := newRedisFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.SeatMap.MarkBooked(ctx, ref, []string{"E2"}))

	_, err := f.svc.Ledger.TryHold(ctx, uuid.New(), ref, "E2", ttl)
	assert.ErrorIs(t, err, entity.ErrSeatUnavailable)
}

func TestSplitHoldKey(t *testing.T) {
	showtime, seat, ok := splitHoldKey(redisHoldKey("st-1001", "A10"))
	require.True(t, ok)
	assert.Equal(t, "st-1001", showtime)
	assert.Equal(t, "A10", seat)

	_, _, ok = splitHoldKey("hold:broken")
	assert.False(t, ok)
}

func TestParseHoldValue(t *testing.T) {
	session := uuid.New()
	owner, exp, err := parseHoldValue(session.String() + "|1760000000000")
	require.NoError(t, err)
	assert.Equal(t, session, owner)
	assert.Equal(t, int64(1760000000000), exp.UnixMilli())

	_, _, err = parseHoldValue("no-separator")
	assert.Error(t, err)
}
