package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_WaitSpacesSameHost(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1: the second call waits about 100ms.
	l := New(Config{RequestsPerSecond: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://www.imdb.com/search/title/?countries=KR"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://www.imdb.com/search/title/?countries=BR"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiter_HostsAreIndependent(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://a.example.com/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://b.example.com/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_DisabledNeverBlocks(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for range 5 {
		require.NoError(t, l.Wait(ctx, "https://www.imdb.com/"))
	}
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiter_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RequestsPerSecond: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://www.imdb.com/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "https://www.imdb.com/"))
}
