package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs the per-IP kiosk rate limiter and the health probe. It is
// optional: callers treat a nil *Redis as "not configured" and fall back to
// the in-memory limiter.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects for kiosk traffic: timeouts are kept short so a dead
// Redis delays a check-in by seconds at most, and the pool is sized for a
// handful of kiosks rather than a fleet.
func NewRedis(addr string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
	return &Redis{Client: client}
}

// Healthy reports redis connectivity for the health endpoint.
func (r *Redis) Healthy(ctx context.Context) bool {
	if r == nil || r.Client == nil {
		return false
	}
	return r.Client.Ping(ctx).Err() == nil
}
