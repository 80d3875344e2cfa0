package sequence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ledger:seq:"

// Redis issues numbers with INCR, which is atomic across every process
// sharing the server. It cannot join a SQL transaction, so a business write
// that fails after Next leaves a gap.
type Redis struct {
	client redis.UniversalClient
}

// NewRedis returns a Redis sequencer.
func NewRedis(client redis.UniversalClient) *Redis {
	return &Redis{client: client}
}

// Next implements Sequencer.
func (r *Redis) Next(ctx context.Context, t DocumentType) (int64, error) {
	if err := checkType(t); err != nil {
		return 0, err
	}
	n, err := r.client.Incr(ctx, redisKeyPrefix+string(t)).Result()
	if err != nil {
		return 0, unavailable(t, err)
	}
	return n, nil
}

// Peek implements Sequencer.
func (r *Redis) Peek(ctx context.Context, t DocumentType) (int64, error) {
	if err := checkType(t); err != nil {
		return 0, err
	}
	n, err := r.client.Get(ctx, redisKeyPrefix+string(t)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, unavailable(t, err)
	}
	return n, nil
}
