package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemember(t *testing.T) {
	c := NewTagged(0)
	ctx := context.Background()
	var calls int

	fn := func(context.Context) (string, error) {
		calls++
		return "v", nil
	}

	for i := 0; i < 3; i++ {
		v, err := Remember(ctx, c, TagExercises, "list", fn)
		require.NoError(t, err)
		assert.Equal(t, "v", v)
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, c.Len(TagExercises))

	require.NoError(t, c.InvalidateTag(ctx, TagExercises))
	assert.Zero(t, c.Len(TagExercises))

	_, err := Remember(ctx, c, TagExercises, "list", fn)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRememberTagsAreIndependent(t *testing.T) {
	c := NewTagged(0)
	ctx := context.Background()

	_, err := Remember(ctx, c, TagExercises, "k", func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	_, err = Remember(ctx, c, TagEditorial, "k", func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)

	require.NoError(t, c.InvalidateTag(ctx, TagEditorial))
	assert.Equal(t, 1, c.Len(TagExercises))
	assert.Zero(t, c.Len(TagEditorial))
}

func TestRememberErrorsAreNotCached(t *testing.T) {
	c := NewTagged(0)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := Remember(ctx, c, TagExercises, "k", func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, c.Len(TagExercises))

	v, err := Remember(ctx, c, TagExercises, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestRememberIfUncacheable(t *testing.T) {
	c := NewTagged(0)
	ctx := context.Background()

	v, err := RememberIf(ctx, c, TagExercises, "k", func(context.Context) (string, bool, error) {
		return "degraded", false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "degraded", v)
	assert.Zero(t, c.Len(TagExercises))
}

func TestRememberTTL(t *testing.T) {
	c := NewTagged(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	var calls int
	fn := func(context.Context) (int, error) { calls++; return calls, nil }

	v, _ := Remember(ctx, c, TagExercises, "k", fn)
	assert.Equal(t, 1, v)
	now = now.Add(30 * time.Second)
	v, _ = Remember(ctx, c, TagExercises, "k", fn)
	assert.Equal(t, 1, v)
	now = now.Add(time.Minute)
	v, _ = Remember(ctx, c, TagExercises, "k", fn)
	assert.Equal(t, 2, v)
}

func TestRememberDropsResultComputedBeforeInvalidation(t *testing.T) {
	c := NewTagged(0)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})

	done := make(chan string)
	go func() {
		v, _ := Remember(ctx, c, TagExercises, "k", func(context.Context) (string, error) {
			close(started)
			<-release
			return "stale", nil
		})
		done <- v
	}()

	<-started
	require.NoError(t, c.InvalidateTag(ctx, TagExercises))
	close(release)
	assert.Equal(t, "stale", <-done)
	assert.Zero(t, c.Len(TagExercises))

	v, err := Remember(ctx, c, TagExercises, "k", func(context.Context) (string, error) { return "fresh", nil })
	require.NoError(t, err)
	assert.Equal(t, "fresh", v)
}

func TestRememberCoalescesConcurrentCallers(t *testing.T) {
	c := NewTagged(0)
	ctx := context.Background()
	var calls atomic.Int32
	gate := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = Remember(ctx, c, TagEditorial, "map", func(context.Context) (int, error) {
				calls.Add(1)
				<-gate
				return 42, nil
			})
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	for _, r := range results {
		assert.Equal(t, 42, r)
	}
	assert.LessOrEqual(t, calls.Load(), int32(8))
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}
