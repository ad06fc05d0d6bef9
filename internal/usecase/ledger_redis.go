package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"cinema-checkout/internal/data/entity"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key layout:
//
//	hold:<showtime>:<seat>    string  "<session>|<expiresAtMs>", PX ttl
//	hold:session:<session>    hash    seat -> hold key
//	hold:expiry               zset    "<hold key>|<session>" scored by expiresAtMs
//
// Expiry is judged against the caller's clock passed in ARGV so the sweeper and
// TryHold agree; the PX ttl is only a backstop when no sweeper is running.
const (
	holdKeyPrefix     = "hold:"
	holdSessionPrefix = "hold:session:"
	holdExpiryKey     = "hold:expiry"
	sweepBatchSize    = 256
)

var tryHoldScript = redis.NewScript(`
	local cur = redis.call('GET', KEYS[1])
	local session = ARGV[1]
	local now_ms = tonumber(ARGV[5])

	if cur then
		local sep = string.find(cur, '|', 1, true)
		local owner = string.sub(cur, 1, sep - 1)
		local exp = tonumber(string.sub(cur, sep + 1))
		if owner ~= session then
			if exp > now_ms then
				return 0
			end
			redis.call('ZREM', KEYS[3], KEYS[1] .. '|' .. owner)
		end
	end

	redis.call('SET', KEYS[1], session .. '|' .. ARGV[2], 'PX', ARGV[3])
	redis.call('HSET', KEYS[2], ARGV[4], KEYS[1])
	redis.call('PEXPIRE', KEYS[2], tonumber(ARGV[3]) * 2)
	redis.call('ZADD', KEYS[3], ARGV[2], KEYS[1] .. '|' .. session)
	return 1
`)

var releaseScript = redis.NewScript(`
	redis.call('HDEL', KEYS[2], ARGV[2])
	local cur = redis.call('GET', KEYS[1])
	if not cur then
		return 0
	end
	local sep = string.find(cur, '|', 1, true)
	if string.sub(cur, 1, sep - 1) ~= ARGV[1] then
		return 0
	end
	redis.call('DEL', KEYS[1])
	redis.call('ZREM', KEYS[3], KEYS[1] .. '|' .. ARGV[1])
	return 1
`)

var sweepScript = redis.NewScript(`
	redis.call('ZREM', KEYS[2], ARGV[1])
	local cur = redis.call('GET', KEYS[1])
	if not cur then
		redis.call('HDEL', KEYS[3], ARGV[4])
		return 1
	end
	local sep = string.find(cur, '|', 1, true)
	local owner = string.sub(cur, 1, sep - 1)
	local exp = tonumber(string.sub(cur, sep + 1))
	if owner ~= ARGV[2] then
		return 0
	end
	if exp > tonumber(ARGV[3]) then
		redis.call('ZADD', KEYS[2], exp, ARGV[1])
		return 0
	end
	redis.call('DEL', KEYS[1])
	redis.call('HDEL', KEYS[3], ARGV[4])
	return 1
`)

type redisLedger struct {
	client *redis.Client
	seats  SeatMap
	now    Clock
	log    *zap.Logger
}

// NewRedisLedger shares holds across instances. Scripts touch keys from more
// than one hash slot, so the client must point at a single Redis node.
func NewRedisLedger(client *redis.Client, seats SeatMap, now Clock, log *zap.Logger) ReservationLedger {
	if now == nil {
		now = time.Now
	}
	return &redisLedger{
		client: client,
		seats:  seats,
		now:    now,
		log:    log.With(zap.String("service", "redis_ledger")),
	}
}

func redisHoldKey(showtimeID, seatID string) string {
	return holdKeyPrefix + showtimeID + ":" + seatID
}

func redisSessionKey(sessionID uuid.UUID) string {
	return holdSessionPrefix + sessionID.String()
}

// splitHoldKey returns (showtimeID, seatID) from hold:<showtime>:<seat>
func splitHoldKey(key string) (string, string, bool) {
	rest := strings.TrimPrefix(key, holdKeyPrefix)
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return "", "", false
	}
	return rest[:i], rest[i+1:], true
}

func parseHoldValue(v string) (uuid.UUID, time.Time, error) {
	owner, exp, ok := strings.Cut(v, "|")
	if !ok {
		return uuid.Nil, time.Time{}, fmt.Errorf("malformed hold value %q", v)
	}
	sessionID, err := uuid.Parse(owner)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("malformed hold owner %q: %w", owner, err)
	}
	ms, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return uuid.Nil, time.Time{}, fmt.Errorf("malformed hold expiry %q: %w", exp, err)
	}
	return sessionID, time.UnixMilli(ms), nil
}

func (l *redisLedger) TryHold(ctx context.Context, sessionID uuid.UUID, ref entity.ShowtimeRef, seatID string, ttl time.Duration) (*entity.Hold, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("hold ttl must be positive, got %s", ttl)
	}

	booked, err := l.seats.IsBooked(ctx, ref, seatID)
	if err != nil {
		return nil, err
	}
	if booked {
		return nil, fmt.Errorf("seat %s is booked: %w", seatID, entity.ErrSeatUnavailable)
	}

	now := l.now()
	expiresAt := now.Add(ttl)
	key := redisHoldKey(ref.ShowtimeID, seatID)

	granted, err := tryHoldScript.Run(ctx, l.client,
		[]string{key, redisSessionKey(sessionID), holdExpiryKey},
		sessionID.String(),
		expiresAt.UnixMilli(),
		ttl.Milliseconds(),
		seatID,
		now.UnixMilli(),
	).Int()
	if err != nil {
		return nil, fmt.Errorf("try hold %s: %w", key, err)
	}
	if granted == 0 {
		return nil, fmt.Errorf("seat %s is held: %w", seatID, entity.ErrSeatUnavailable)
	}

	return &entity.Hold{
		SessionID: sessionID,
		SeatID:    seatID,
		Showtime:  ref,
		ExpiresAt: time.UnixMilli(expiresAt.UnixMilli()),
	}, nil
}

func (l *redisLedger) Release(ctx context.Context, sessionID uuid.UUID, seatID string) error {
	key, err := l.client.HGet(ctx, redisSessionKey(sessionID), seatID).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup hold %s for session %s: %w", seatID, sessionID, err)
	}

	_, err = l.release(ctx, sessionID, key, seatID)
	return err
}

func (l *redisLedger) release(ctx context.Context, sessionID uuid.UUID, key, seatID string) (bool, error) {
	n, err := releaseScript.Run(ctx, l.client,
		[]string{key, redisSessionKey(sessionID), holdExpiryKey},
		sessionID.String(),
		seatID,
	).Int()
	if err != nil {
		return false, fmt.Errorf("release hold %s: %w", key, err)
	}
	return n == 1, nil
}

func (l *redisLedger) ReleaseSession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	entries, err := l.client.HGetAll(ctx, redisSessionKey(sessionID)).Result()
	if err != nil {
		return 0, fmt.Errorf("list holds for session %s: %w", sessionID, err)
	}

	released := 0
	for seatID, key := range entries {
		ok, err := l.release(ctx, sessionID, key, seatID)
		if err != nil {
			return released, err
		}
		if ok {
			released++
		}
	}
	return released, nil
}

func (l *redisLedger) HoldsForSession(ctx context.Context, sessionID uuid.UUID) ([]entity.Hold, error) {
	entries, err := l.client.HGetAll(ctx, redisSessionKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list holds for session %s: %w", sessionID, err)
	}
	if len(entries) == 0 {
		return []entity.Hold{}, nil
	}

	seatIDs := make([]string, 0, len(entries))
	keys := make([]string, 0, len(entries))
	for seatID, key := range entries {
		seatIDs = append(seatIDs, seatID)
		keys = append(keys, key)
	}

	values, err := l.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load holds for session %s: %w", sessionID, err)
	}

	now := l.now()
	refs := make(map[string]entity.ShowtimeRef)
	holds := make([]entity.Hold, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		owner, expiresAt, err := parseHoldValue(raw)
		if err != nil {
			l.log.Warn("Skipping malformed hold", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		if owner != sessionID || !now.Before(expiresAt) {
			continue
		}

		showtimeID, _, ok := splitHoldKey(keys[i])
		if !ok {
			continue
		}
		ref, ok := refs[showtimeID]
		if !ok {
			st, err := l.seats.Showtime(ctx, showtimeID)
			if err != nil {
				return nil, err
			}
			ref = st.Ref
			refs[showtimeID] = ref
		}

		holds = append(holds, entity.Hold{
			SessionID: sessionID,
			SeatID:    seatIDs[i],
			Showtime:  ref,
			ExpiresAt: expiresAt,
		})
	}

	sort.Slice(holds, func(i, j int) bool { return holds[i].SeatID < holds[j].SeatID })
	return holds, nil
}

func (l *redisLedger) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	nowMs := now.UnixMilli()
	reclaimed := 0

	for {
		members, err := l.client.ZRangeByScore(ctx, holdExpiryKey, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(nowMs, 10),
			Count: sweepBatchSize,
		}).Result()
		if err != nil {
			return reclaimed, fmt.Errorf("scan expired holds: %w", err)
		}
		if len(members) == 0 {
			break
		}

		for _, member := range members {
			i := strings.LastIndex(member, "|")
			if i < 0 {
				l.client.ZRem(ctx, holdExpiryKey, member)
				continue
			}
			key, session := member[:i], member[i+1:]
			sessionID, err := uuid.Parse(session)
			if err != nil {
				l.client.ZRem(ctx, holdExpiryKey, member)
				continue
			}
			_, seatID, ok := splitHoldKey(key)
			if !ok {
				l.client.ZRem(ctx, holdExpiryKey, member)
				continue
			}

			n, err := sweepScript.Run(ctx, l.client,
				[]string{key, holdExpiryKey, redisSessionKey(sessionID)},
				member,
				session,
				nowMs,
				seatID,
			).Int()
			if err != nil {
				return reclaimed, fmt.Errorf("sweep hold %s: %w", key, err)
			}
			reclaimed += n
		}

		if len(members) < sweepBatchSize {
			break
		}
	}

	if reclaimed > 0 {
		l.log.Info("Expired holds swept", zap.Int("reclaimed", reclaimed))
	}
	return reclaimed, nil
}
