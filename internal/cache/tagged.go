// Package cache holds the in-process caches for merged catalog output and the
// coordinator that invalidates them after admin mutations.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Tags used by the catalog.
const (
	TagExercises = "exercises"
	TagEditorial = "editorial"
)

type item struct {
	value   any
	expires time.Time
}

// Tagged memoizes computed values under a tag. InvalidateTag drops every key
// of the tag; a computation that started before the invalidation is returned
// to its caller but never stored.
type Tagged struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]map[string]item
	gen     map[string]uint64

	group singleflight.Group
}

// NewTagged builds a cache. A zero ttl keeps entries until invalidated.
func NewTagged(ttl time.Duration) *Tagged {
	return &Tagged{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]map[string]item),
		gen:     make(map[string]uint64),
	}
}

func (c *Tagged) lookup(tag, key string) (any, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	gen := c.gen[tag]
	it, ok := c.entries[tag][key]
	if !ok {
		return nil, gen, false
	}
	if !it.expires.IsZero() && c.now().After(it.expires) {
		delete(c.entries[tag], key)
		return nil, gen, false
	}
	return it.value, gen, true
}

func (c *Tagged) store(tag, key string, gen uint64, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen[tag] != gen {
		return
	}
	m, ok := c.entries[tag]
	if !ok {
		m = make(map[string]item)
		c.entries[tag] = m
	}
	it := item{value: v}
	if c.ttl > 0 {
		it.expires = c.now().Add(c.ttl)
	}
	m[key] = it
}

// InvalidateTag drops every entry under tag.
func (c *Tagged) InvalidateTag(_ context.Context, tag string) error {
	c.mu.Lock()
	delete(c.entries, tag)
	c.gen[tag]++
	c.mu.Unlock()
	return nil
}

// Len reports the number of live entries under tag.
func (c *Tagged) Len(tag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries[tag])
}

type result struct {
	value     any
	cacheable bool
}

// RememberIf returns the cached value for tag/key or computes it with fn.
// Concurrent callers for the same key share one computation. fn reports
// whether its result may be stored; errors are never stored.
func RememberIf[T any](ctx context.Context, c *Tagged, tag, key string, fn func(context.Context) (T, bool, error)) (T, error) {
	v, gen, ok := c.lookup(tag, key)
	if ok {
		t, _ := v.(T)
		return t, nil
	}

	sfKey := fmt.Sprintf("%s\x00%s\x00%d", tag, key, gen)

	r, err, _ := c.group.Do(sfKey, func() (any, error) {
		val, cacheable, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if cacheable {
			c.store(tag, key, gen, val)
		}
		return result{value: val, cacheable: cacheable}, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	t, _ := r.(result).value.(T)
	return t, nil
}

// Remember is RememberIf for computations whose results are always cacheable.
func Remember[T any](ctx context.Context, c *Tagged, tag, key string, fn func(context.Context) (T, error)) (T, error) {
	return RememberIf(ctx, c, tag, key, func(ctx context.Context) (T, bool, error) {
		v, err := fn(ctx)
		return v, true, err
	})
}
