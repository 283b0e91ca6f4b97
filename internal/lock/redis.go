package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	goredislib "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// NewRedisClient parses url, connects and pings the server.
func NewRedisClient(ctx context.Context, url string) (*goredislib.Client, error) {
	opts, err := goredislib.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := goredislib.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Redis serialises merges for one owner across every process sharing the Redis server.
type Redis struct {
	rs     *redsync.Redsync
	expiry time.Duration
	logger zerolog.Logger
}

// NewRedis builds a Redis locker. Locks expire after expiry if the holder dies.
func NewRedis(client *goredislib.Client, expiry time.Duration, logger zerolog.Logger) *Redis {
	if expiry <= 0 {
		expiry = 5 * time.Minute
	}
	return &Redis{rs: redsync.New(goredis.NewPool(client)), expiry: expiry, logger: logger}
}

// Lock acquires mutex:merge:<ownerID>.
func (r *Redis) Lock(ctx context.Context, ownerID string) (func(), error) {
	key := "mutex:merge:" + ownerID
	mutex := r.rs.NewMutex(key, redsync.WithExpiry(r.expiry), redsync.WithTries(20), redsync.WithRetryDelay(250*time.Millisecond))
	if err := mutex.LockContext(ctx); err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	return func() {
		if _, err := mutex.Unlock(); err != nil {
			r.logger.Error().
				Err(err).
				Str("evt.name", "lock.unlock_failed").
				Str("key", key).
				Msg("failed to release merge lock")
		}
	}, nil
}
