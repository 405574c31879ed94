package cache

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// TEST_REDIS_ADDR が無ければスキップ
func TestGuestDeviceRedisStore_ConcurrentSetIfAbsentConverges(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, addr, os.Getenv("TEST_REDIS_PASSWORD"))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	store := NewGuestDeviceRedisStore(client, time.Minute)
	device := "test-" + strconv.FormatInt(time.Now().UnixNano(), 10)
	defer client.Del(ctx, guestKeyPrefix+device)

	_, found, err := store.Get(ctx, device)
	require.NoError(t, err)
	assert.False(t, found)

	winners := make([]int64, 10)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 10; i++ {
		i := i
		g.Go(func() error {
			w, _, err := store.SetIfAbsent(gctx, device, int64(100+i))
			winners[i] = w
			return err
		})
	}
	require.NoError(t, g.Wait())

	for _, w := range winners {
		assert.Equal(t, winners[0], w)
	}

	got, found, err := store.Get(ctx, device)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, winners[0], got)
}
