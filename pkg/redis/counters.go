package redis

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrExpire increments KEYS[1] and starts its TTL on the first increment, in
// one round trip so a counter can never be left without an expiry.
var incrExpire = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 and tonumber(ARGV[1]) > 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// OrderedField is a hash field with its integer value.
type OrderedField struct {
	Field string
	Value int64
}

// IncrWithTTL increments key; ttl applies from the first increment only.
func (c *Client) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c.cmd == nil {
		return 0, errNotInitialized
	}
	return incrExpire.Run(ctx, c.cmd, []string{key}, ttl.Milliseconds()).Int64()
}

// FixedWindowAllow counts one hit against scope and reports whether the
// window's count is still within limit.
func (c *Client) FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error) {
	count, err := c.IncrWithTTL(ctx, c.RateLimitKey(scope), window)
	if err != nil {
		return false, 0, err
	}
	return count <= limit, count, nil
}

// IncrOrderedField adds delta to field of the hash at key and records when the
// field was first seen, so OrderedFields can list fields in insertion order.
// The hash, its order set and both TTLs change in one MULTI/EXEC.
func (c *Client) IncrOrderedField(ctx context.Context, key, field string, delta int64, ttl time.Duration) (int64, error) {
	if c.cmd == nil {
		return 0, errNotInitialized
	}
	var incr *redis.IntCmd
	_, err := c.cmd.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = queueOrderedIncr(ctx, pipe, key, field, delta, ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// IncrTally adds one to the counter at counterKey and every delta to the
// ordered hash at fieldsKey in one MULTI/EXEC. Either all increments land or
// none do.
func (c *Client) IncrTally(ctx context.Context, counterKey, fieldsKey string, deltas []OrderedField, ttl time.Duration) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	_, err := c.cmd.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, counterKey)
		if ttl > 0 {
			pipe.Expire(ctx, counterKey, ttl)
		}
		for _, d := range deltas {
			queueOrderedIncr(ctx, pipe, fieldsKey, d.Field, d.Value, ttl)
		}
		return nil
	})
	return err
}

func queueOrderedIncr(ctx context.Context, pipe redis.Pipeliner, key, field string, delta int64, ttl time.Duration) *redis.IntCmd {
	pipe.ZAddNX(ctx, orderKey(key), redis.Z{Score: float64(time.Now().UnixMicro()), Member: field})
	incr := pipe.HIncrBy(ctx, key, field, delta)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
		pipe.Expire(ctx, orderKey(key), ttl)
	}
	return incr
}

func (c *Client) RemoveOrderedField(ctx context.Context, key, field string) error {
	if c.cmd == nil {
		return errNotInitialized
	}
	_, err := c.cmd.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HDel(ctx, key, field)
		pipe.ZRem(ctx, orderKey(key), field)
		return nil
	})
	return err
}

// OrderedFields lists the hash at key in first-insert order, skipping fields
// whose value is gone or not an integer.
func (c *Client) OrderedFields(ctx context.Context, key string) ([]OrderedField, error) {
	if c.cmd == nil {
		return nil, errNotInitialized
	}
	var (
		order  *redis.StringSliceCmd
		values *redis.MapStringStringCmd
	)
	_, err := c.cmd.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		order = pipe.ZRange(ctx, orderKey(key), 0, -1)
		values = pipe.HGetAll(ctx, key)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}

	hash := values.Val()
	out := make([]OrderedField, 0, len(hash))
	for _, field := range order.Val() {
		n, convErr := strconv.ParseInt(hash[field], 10, 64)
		if convErr != nil {
			continue
		}
		out = append(out, OrderedField{Field: field, Value: n})
	}
	return out, nil
}

// DelOrdered removes the hash at key together with its order set.
func (c *Client) DelOrdered(ctx context.Context, key string) error {
	return c.Del(ctx, key, orderKey(key))
}
