package posting

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// FloodGuard holds the per-address posting window in redis. A conditional
// SET NX PX closes the race between two submissions that both passed the
// flood gate: only one reservation can exist per window.
type FloodGuard struct {
	rdb *redis.Client
}

// NewFloodGuard constructs a FloodGuard.
func NewFloodGuard(rdb *redis.Client) *FloodGuard {
	return &FloodGuard{rdb: rdb}
}

func floodKey(ip string) string {
	return fmt.Sprintf("flood:%s", ip)
}

// Reserve claims the posting window for the address. It returns false with
// the remaining wait when another admission already holds the window.
func (g *FloodGuard) Reserve(ctx context.Context, ip string, window time.Duration) (bool, time.Duration, error) {
	ok, err := g.rdb.SetNX(ctx, floodKey(ip), 1, window).Result()
	if err != nil {
		return false, 0, err
	}
	if ok {
		return true, 0, nil
	}
	remaining, err := g.rdb.PTTL(ctx, floodKey(ip)).Result()
	if err != nil || remaining < 0 {
		remaining = window
	}
	return false, remaining, nil
}

// Release drops the reservation, used when persistence fails after a
// successful claim so the client may retry immediately.
func (g *FloodGuard) Release(ctx context.Context, ip string) error {
	return g.rdb.Del(ctx, floodKey(ip)).Err()
}
