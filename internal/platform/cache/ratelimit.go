package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimitCounter backs httprate's fixed-window counters with Redis so the
// ceiling holds across instances. It satisfies httprate.LimitCounter.
type RateLimitCounter struct {
	client       *redis.Client
	prefix       string
	windowLength time.Duration
}

// NewRateLimitCounter constructs a Redis-backed counter.
func NewRateLimitCounter(client *redis.Client) *RateLimitCounter {
	return &RateLimitCounter{client: client, prefix: "ratelimit"}
}

// Config receives the limiter settings at install time.
func (c *RateLimitCounter) Config(requestLimit int, windowLength time.Duration) {
	c.windowLength = windowLength
}

// Increment adds one request to the key's current window.
func (c *RateLimitCounter) Increment(key string, currentWindow time.Time) error {
	return c.IncrementBy(key, currentWindow, 1)
}

// IncrementBy adds amount requests to the key's current window. Window keys
// expire after two window lengths so stale counters clean themselves up.
func (c *RateLimitCounter) IncrementBy(key string, currentWindow time.Time, amount int) error {
	ctx := context.Background()
	redisKey := c.windowKey(key, currentWindow)

	pipe := c.client.TxPipeline()
	pipe.IncrBy(ctx, redisKey, int64(amount))
	pipe.Expire(ctx, redisKey, 2*c.windowLength)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("platform/cache: increment rate limit: %w", err)
	}
	return nil
}

// Get returns the request counts for the current and previous windows.
func (c *RateLimitCounter) Get(key string, currentWindow, previousWindow time.Time) (int, int, error) {
	ctx := context.Background()
	values, err := c.client.MGet(ctx, c.windowKey(key, currentWindow), c.windowKey(key, previousWindow)).Result()
	if err != nil {
		return 0, 0, fmt.Errorf("platform/cache: get rate limit: %w", err)
	}

	curr, prev := 0, 0
	if len(values) > 0 {
		curr = parseCount(values[0])
	}
	if len(values) > 1 {
		prev = parseCount(values[1])
	}
	return curr, prev, nil
}

func (c *RateLimitCounter) windowKey(key string, window time.Time) string {
	return c.prefix + ":" + key + ":" + strconv.FormatInt(window.Unix(), 10)
}

func parseCount(value any) int {
	s, ok := value.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
