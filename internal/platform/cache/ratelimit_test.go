package cache

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCounter(t *testing.T) (*RateLimitCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	counter := NewRateLimitCounter(client)
	counter.Config(100, time.Minute)
	return counter, mr
}

func TestCounterIncrementAndGet(t *testing.T) {
	counter, _ := newTestCounter(t)
	window := time.Now().Truncate(time.Minute)

	for i := 0; i < 3; i++ {
		require.NoError(t, counter.Increment("1.2.3.4", window))
	}

	curr, prev, err := counter.Get("1.2.3.4", window, window.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, curr)
	assert.Equal(t, 0, prev)
}

func TestCounterTracksWindowsSeparately(t *testing.T) {
	counter, _ := newTestCounter(t)
	current := time.Now().Truncate(time.Minute)
	previous := current.Add(-time.Minute)

	require.NoError(t, counter.IncrementBy("1.2.3.4", previous, 5))
	require.NoError(t, counter.IncrementBy("1.2.3.4", current, 2))

	curr, prev, err := counter.Get("1.2.3.4", current, previous)
	require.NoError(t, err)
	assert.Equal(t, 2, curr)
	assert.Equal(t, 5, prev)
}

func TestCounterIsolatesKeys(t *testing.T) {
	counter, _ := newTestCounter(t)
	window := time.Now().Truncate(time.Minute)

	require.NoError(t, counter.IncrementBy("1.2.3.4", window, 7))

	curr, _, err := counter.Get("5.6.7.8", window, window.Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, curr)
}

func TestCounterKeysExpire(t *testing.T) {
	counter, mr := newTestCounter(t)
	window := time.Now().Truncate(time.Minute)

	require.NoError(t, counter.Increment("1.2.3.4", window))

	// Window keys live for two window lengths.
	mr.FastForward(2*time.Minute + time.Second)

	curr, _, err := counter.Get("1.2.3.4", window, window.Add(-time.Minute))
	require.NoError(t, err)
	assert.Zero(t, curr)
}
