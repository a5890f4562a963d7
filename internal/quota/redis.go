package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lalith-99/vectorvault/internal/models"
	"github.com/redis/go-redis/v9"
)

// LimitSource supplies the active plan's limits.
type LimitSource interface {
	PlanLimits(ctx context.Context, orgID uuid.UUID) (*models.PlanLimits, error)
}

// admitScript runs atomically inside Redis, so no other client can observe
// or modify the counter between the comparison and the increment.
//
// KEYS[1] counter key
// ARGV[1] amount, ARGV[2] limit, ARGV[3] unix expiry
var admitScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local amount = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
if current + amount > limit then
	return 0
end
redis.call('INCRBY', KEYS[1], amount)
redis.call('EXPIREAT', KEYS[1], ARGV[3])
return 1
`)

// releaseScript decrements by at most the current value, so the counter
// stops at zero. A missing key is left missing.
//
// KEYS[1] counter key
// ARGV[1] amount
var releaseScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local n = math.min(current, tonumber(ARGV[1]))
if n > 0 then
	redis.call('DECRBY', KEYS[1], n)
end
return current - n
`)

// RedisGate keeps the monthly counters in Redis and reads limits from the
// plan tables.
type RedisGate struct {
	client redis.Scripter
	limits LimitSource
	now    func() time.Time
}

func NewRedisGate(client redis.Scripter, limits LimitSource) *RedisGate {
	return &RedisGate{client: client, limits: limits, now: time.Now}
}

func (g *RedisGate) Admit(ctx context.Context, orgID uuid.UUID, metric Metric, amount int) (bool, error) {
	if err := Check(metric, amount); err != nil {
		return false, err
	}

	plan, err := g.limits.PlanLimits(ctx, orgID)
	if err != nil {
		return false, fmt.Errorf("load plan limits: %w", err)
	}
	// No active subscription means nothing is admitted.
	if plan == nil {
		return false, nil
	}

	limit := plan.MaxQueriesPerMonth
	if metric == MetricRecords {
		limit = plan.MaxRecords
	}

	now := g.now().UTC()
	res, err := admitScript.Run(ctx, g.client,
		[]string{CounterKey(orgID, metric, now)},
		amount, limit, counterExpiry(now).Unix(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("run admit script: %w", err)
	}
	return res == 1, nil
}

// Release decrements this month's counter.
func (g *RedisGate) Release(ctx context.Context, orgID uuid.UUID, metric Metric, amount int) error {
	if err := Check(metric, amount); err != nil {
		return err
	}
	key := CounterKey(orgID, metric, g.now())
	if err := releaseScript.Run(ctx, g.client, []string{key}, amount).Err(); err != nil {
		return fmt.Errorf("run release script: %w", err)
	}
	return nil
}

// CounterKey is the Redis key of orgID's metric counter for the month
// containing t.
func CounterKey(orgID uuid.UUID, metric Metric, t time.Time) string {
	return fmt.Sprintf("usage:%s:%s:%s", orgID, t.UTC().Format("2006-01"), metric)
}

// counterExpiry keeps a month's counter through the following month so the
// previous period stays inspectable.
func counterExpiry(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+2, 1, 0, 0, 0, 0, time.UTC)
}
