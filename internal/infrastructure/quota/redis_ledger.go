package quota

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/docgen/backend/internal/domain/quota"
	"github.com/docgen/backend/internal/domain/shared"
)

const defaultRecordTTL = 100 * 24 * time.Hour

// reserveScript checks and increments a record in one step.
// KEYS[1] record hash, KEYS[2] pending token set.
// ARGV: reported limit, token, now (unix ms), ttl (seconds).
// Returns {granted, used, limit}.
var reserveScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local used = tonumber(redis.call('HGET', KEYS[1], 'used') or '0')
local current = redis.call('HGET', KEYS[1], 'limit')
if current then
  current = tonumber(current)
  if current == -1 or limit == -1 then
    limit = -1
  elseif current > limit then
    limit = current
  end
end
redis.call('HSET', KEYS[1], 'limit', limit)
if limit ~= -1 and used >= limit then
  if not current then
    redis.call('HSET', KEYS[1], 'used', used, 'updated_at', ARGV[3])
    redis.call('EXPIRE', KEYS[1], ARGV[4])
  end
  return {0, used, limit}
end
used = redis.call('HINCRBY', KEYS[1], 'used', 1)
redis.call('HSET', KEYS[1], 'updated_at', ARGV[3])
redis.call('SADD', KEYS[2], ARGV[2])
redis.call('EXPIRE', KEYS[1], ARGV[4])
redis.call('EXPIRE', KEYS[2], ARGV[4])
return {1, used, limit}
`)

// rollbackScript decrements a record only if the token was still pending.
// KEYS[1] record hash, KEYS[2] pending token set. ARGV: token, now (unix ms).
var rollbackScript = redis.NewScript(`
if redis.call('SREM', KEYS[2], ARGV[1]) == 0 then
  return 0
end
local used = tonumber(redis.call('HGET', KEYS[1], 'used') or '0')
if used > 0 then
  redis.call('HINCRBY', KEYS[1], 'used', -1)
end
redis.call('HSET', KEYS[1], 'updated_at', ARGV[2])
return 1
`)

// RedisLedgerConfig configures a RedisLedger
type RedisLedgerConfig struct {
	KeyPrefix string
	// RecordTTL is how long a record survives its last write. It must outlast
	// the longest period.
	RecordTTL time.Duration
}

// RedisLedger implements quota.Ledger on Redis.
// Reserve and Rollback run as Lua scripts so the check and the increment
// are indivisible across every instance sharing the server.
type RedisLedger struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// NewRedisLedger creates a ledger over an existing client
func NewRedisLedger(client redis.UniversalClient, cfg RedisLedgerConfig) *RedisLedger {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "docgen:"
	}
	if cfg.RecordTTL <= 0 {
		cfg.RecordTTL = defaultRecordTTL
	}
	return &RedisLedger{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
		ttl:       cfg.RecordTTL,
		now:       time.Now,
	}
}

// keys returns the record and pending-set keys. The hash tag keeps both in
// one cluster slot.
func (l *RedisLedger) keys(userID string, period quota.PeriodKey) []string {
	base := fmt.Sprintf("%squota:{%s:%s}", l.keyPrefix, userID, period)
	return []string{base, base + ":pending"}
}

// Reserve takes one slot if the record allows it
func (l *RedisLedger) Reserve(ctx context.Context, req quota.ReserveRequest) (*quota.Reservation, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	now := l.now().UTC()
	r := quota.NewReservation(req.UserID, req.PeriodKey, 0, req.Limit, now)

	res, err := reserveScript.Run(ctx, l.client, l.keys(req.UserID, req.PeriodKey),
		req.Limit, r.Token.String(), now.UnixMilli(), int64(l.ttl.Seconds())).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to reserve quota: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("failed to reserve quota: unexpected script reply %v", res)
	}
	if res[0] == 0 {
		return nil, &quota.ExceededError{UserID: req.UserID, PeriodKey: req.PeriodKey, Used: res[1], Limit: res[2]}
	}
	r.Used, r.Limit = res[1], res[2]
	return r, nil
}

// Commit settles a pending reservation
func (l *RedisLedger) Commit(ctx context.Context, r *quota.Reservation) error {
	if r == nil {
		return nil
	}
	if err := l.client.SRem(ctx, l.keys(r.UserID, r.PeriodKey)[1], r.Token.String()).Err(); err != nil {
		return fmt.Errorf("failed to commit reservation: %w", err)
	}
	return nil
}

// Rollback returns the slot of a pending reservation
func (l *RedisLedger) Rollback(ctx context.Context, r *quota.Reservation) error {
	if r == nil {
		return nil
	}
	err := rollbackScript.Run(ctx, l.client, l.keys(r.UserID, r.PeriodKey),
		r.Token.String(), l.now().UTC().UnixMilli()).Err()
	if err != nil {
		return fmt.Errorf("failed to roll back reservation: %w", err)
	}
	return nil
}

// Get reads the record
func (l *RedisLedger) Get(ctx context.Context, userID string, period quota.PeriodKey) (*quota.Record, error) {
	values, err := l.client.HGetAll(ctx, l.keys(userID, period)[0]).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read quota record: %w", err)
	}
	if len(values) == 0 {
		return nil, shared.ErrNotFound
	}

	rec := &quota.Record{UserID: userID, PeriodKey: period}
	if rec.Used, err = strconv.ParseInt(values["used"], 10, 64); err != nil {
		return nil, fmt.Errorf("corrupt quota record: used: %w", err)
	}
	if rec.Limit, err = strconv.ParseInt(values["limit"], 10, 64); err != nil {
		return nil, fmt.Errorf("corrupt quota record: limit: %w", err)
	}
	if ms, err := strconv.ParseInt(values["updated_at"], 10, 64); err == nil {
		rec.UpdatedAt = time.UnixMilli(ms).UTC()
	}
	return rec, nil
}

// Ping checks the connection
func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

var _ quota.Ledger = (*RedisLedger)(nil)
