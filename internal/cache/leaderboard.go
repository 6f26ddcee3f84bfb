// Package cache keeps short-lived copies of hot read models in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/cleanupghent/cleanup-backend/internal/dto"
	"github.com/redis/go-redis/v9"
)

const leaderboardPrefix = "cleanup:leaderboard"

// Connect parses a redis:// URL and verifies the server answers PING.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Leaderboard caches pages under a generation counter. Invalidate bumps the
// counter so every older page becomes unreachable and ages out on its own TTL.
type Leaderboard struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboard(client *redis.Client, ttl time.Duration) *Leaderboard {
	return &Leaderboard{client: client, ttl: ttl}
}

func generationKey() string {
	return leaderboardPrefix + ":gen"
}

func pageKey(generation int64, limit int) string {
	return leaderboardPrefix + ":" + strconv.FormatInt(generation, 10) + ":" + strconv.Itoa(limit)
}

func (l *Leaderboard) generation(ctx context.Context) (int64, error) {
	gen, err := l.client.Get(ctx, generationKey()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// Get returns the page for limit at the current generation. The generation is
// returned on a miss too so the caller can hand it back to Set.
func (l *Leaderboard) Get(ctx context.Context, limit int) ([]dto.LeaderboardEntry, int64, bool) {
	gen, err := l.generation(ctx)
	if err != nil {
		slog.Warn("leaderboard cache read failed", "error", err)
		return nil, -1, false
	}
	raw, err := l.client.Get(ctx, pageKey(gen, limit)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("leaderboard cache read failed", "error", err)
		}
		return nil, gen, false
	}
	var entries []dto.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, gen, false
	}
	return entries, gen, true
}

// Set stores a page under the generation observed by Get. A page computed
// before an Invalidate lands under a stale key and is never read.
func (l *Leaderboard) Set(ctx context.Context, limit int, generation int64, entries []dto.LeaderboardEntry) {
	if generation < 0 {
		return
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return
	}
	if err := l.client.Set(ctx, pageKey(generation, limit), raw, l.ttl).Err(); err != nil {
		slog.Warn("leaderboard cache write failed", "error", err)
	}
}

func (l *Leaderboard) Invalidate(ctx context.Context) {
	if err := l.client.Incr(ctx, generationKey()).Err(); err != nil {
		slog.Warn("leaderboard cache invalidation failed", "error", err)
	}
}

// Ping backs the health endpoint.
func Ping(ctx context.Context, client *redis.Client) error {
	return client.Ping(ctx).Err()
}
