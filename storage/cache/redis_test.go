package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/tests"
)

type fixedSeed int

func (c fixedSeed) LastSequence(context.Context, string, ...core.DBExecutor) (int, error) {
	return int(c), nil
}

func openRedis(t *testing.T) *redis.Client {
	t.Helper()
	conf := testutil.NewConfig(t)
	if !conf.Redis.Enabled() {
		t.Skip("Redis not configured")
	}
	client, err := Open(context.Background(), conf)
	if err != nil {
		t.Skipf("Redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisCache(t *testing.T) {
	ctx := context.Background()
	c := NewRedisCache(openRedis(t))
	key := fmt.Sprintf("test:%d", time.Now().UnixNano())
	t.Cleanup(func() { _ = c.Delete(ctx, key) })

	type summary struct {
		Total int      `json:"total"`
		Names []string `json:"names"`
	}
	var got summary
	assert.Equal(t, core.ErrCacheMiss, c.Get(ctx, key, &got))

	want := summary{Total: 2, Names: []string{"a", "b"}}
	require.NoError(t, c.Set(ctx, key, want, time.Minute))
	require.NoError(t, c.Get(ctx, key, &got))
	assert.Equal(t, want, got)

	require.NoError(t, c.Delete(ctx, key))
	assert.Equal(t, core.ErrCacheMiss, c.Get(ctx, key, &got))
	assert.NoError(t, c.Delete(ctx))
}

func TestRedisSequencer(t *testing.T) {
	ctx := context.Background()
	client := openRedis(t)
	partition := fmt.Sprintf("t%d", time.Now().UnixNano())
	t.Cleanup(func() { client.Del(ctx, sequencePrefix+partition) })

	seq := NewRedisSequencer(client, fixedSeed(41))

	const n = 25
	values := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.NextValue(ctx, partition)
			if assert.NoError(t, err) {
				values <- v
			}
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int]bool)
	for v := range values {
		assert.False(t, seen[v], "duplicate value %d", v)
		assert.Greater(t, v, 41)
		seen[v] = true
	}
	assert.Len(t, seen, n)
}
