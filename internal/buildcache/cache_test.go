package buildcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/atograph/internal/typegraph"
)

func TestCache_ClaimOncePerHash(t *testing.T) {
	t.Parallel()

	c := New()
	hash := HashContent([]byte("module M:\n"))

	e1, claimed := c.Claim("/p/a.ato", hash)
	require.True(t, claimed, "first claim must win the build")
	e1.Complete(&typegraph.FileTypes{Path: "/p/a.ato"}, nil)

	e2, claimed := c.Claim("/p/a.ato", hash)
	assert.False(t, claimed, "unchanged content must reuse the entry")
	assert.Same(t, e1, e2)
	assert.Equal(t, 1, c.BuildCount("/p/a.ato"))
}

func TestCache_HashMismatchEvicts(t *testing.T) {
	t.Parallel()

	c := New()
	e1, claimed := c.Claim("/p/a.ato", HashContent([]byte("v1")))
	require.True(t, claimed)
	e1.Complete(nil, nil)

	e2, claimed := c.Claim("/p/a.ato", HashContent([]byte("v2")))
	require.True(t, claimed, "changed content must rebuild")
	assert.NotSame(t, e1, e2)
	assert.Equal(t, 2, c.BuildCount("/p/a.ato"))
	assert.Equal(t, []string{"/p/a.ato"}, c.DrainEvicted())
	assert.Empty(t, c.DrainEvicted(), "drain must be one-shot")
}

func TestCache_Invalidate(t *testing.T) {
	t.Parallel()

	c := New()
	hash := HashContent([]byte("v1"))
	e1, _ := c.Claim("/p/a.ato", hash)
	e1.Complete(nil, nil)

	c.Invalidate("/p/a.ato")
	c.Invalidate("/p/unknown.ato") // no-op

	_, claimed := c.Claim("/p/a.ato", hash)
	assert.True(t, claimed, "invalidation must force a rebuild even for the same hash")
	assert.Equal(t, []string{"/p/a.ato"}, c.DrainEvicted())
}

func TestEntry_WaitBlocksUntilComplete(t *testing.T) {
	t.Parallel()

	c := New()
	e, claimed := c.Claim("/p/a.ato", "h")
	require.True(t, claimed)
	require.False(t, e.Done())

	buildErr := errors.New("boom")
	go func() {
		time.Sleep(10 * time.Millisecond)
		e.Complete(nil, buildErr)
	}()

	err := e.Wait(context.Background())
	assert.ErrorIs(t, err, buildErr)
	assert.True(t, e.Done())
}

func TestEntry_WaitHonorsContext(t *testing.T) {
	t.Parallel()

	c := New()
	e, _ := c.Claim("/p/a.ato", "h")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.Wait(ctx), context.Canceled)
}

func TestCache_Lookup(t *testing.T) {
	t.Parallel()

	c := New()
	_, ok := c.Lookup("/p/a.ato")
	assert.False(t, ok)

	e, _ := c.Claim("/p/a.ato", "h")
	got, ok := c.Lookup("/p/a.ato")
	require.True(t, ok)
	assert.Same(t, e, got)

	c.Invalidate("/p/a.ato")
	_, ok = c.Lookup("/p/a.ato")
	assert.False(t, ok, "invalidation must drop the entry")
}

func TestEntry_ResolveRunsOnce(t *testing.T) {
	t.Parallel()

	c := New()
	e, _ := c.Claim("/p/a.ato", "h")

	var calls atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.Resolve(func() error {
				calls.Add(1)
				time.Sleep(5 * time.Millisecond)
				return nil
			})
			if err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "only one caller may resolve the entry")
}

func TestEntry_ResolveReplaysError(t *testing.T) {
	t.Parallel()

	c := New()
	e, _ := c.Claim("/p/a.ato", "h")

	resolveErr := errors.New("unresolved parent")
	assert.ErrorIs(t, e.Resolve(func() error { return resolveErr }), resolveErr)
	assert.ErrorIs(t, e.Resolve(func() error { return nil }), resolveErr,
		"later callers must observe the original outcome")

	// A fresh entry after eviction resolves independently.
	c.Invalidate("/p/a.ato")
	e2, _ := c.Claim("/p/a.ato", "h")
	assert.NoError(t, e2.Resolve(func() error { return nil }))
}

func TestCache_ConcurrentClaimSingleWinner(t *testing.T) {
	t.Parallel()

	c := New()
	hash := HashContent([]byte("module M:\n"))

	var winners atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e, claimed := c.Claim("/p/a.ato", hash)
			if claimed {
				winners.Add(1)
				time.Sleep(5 * time.Millisecond)
				e.Complete(&typegraph.FileTypes{Path: "/p/a.ato"}, nil)
				return
			}
			if err := e.Wait(context.Background()); err != nil {
				t.Error(err)
			}
			if e.Types == nil {
				t.Error("waiter observed an incomplete entry")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load(), "exactly one goroutine may build")
	assert.Equal(t, 1, c.BuildCount("/p/a.ato"))
}
