package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"exercisehub/internal/code"
	"exercisehub/internal/metrics"
)

type TagInvalidator interface {
	InvalidateTag(ctx context.Context, tag string) error
}

type PathInvalidator interface {
	InvalidatePath(ctx context.Context, path string) error
}

// A PathInvalidator that can also drop every path at once. Revalidating a
// tag that feeds rendered pages uses it.
type AllPathsInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// dependents lists the tags whose cached values embed data from a tag.
// Sheets carry their editorial source, so editorial changes reach exercises.
var dependents = map[string][]string{
	TagEditorial: {TagExercises},
}

// TagsFor returns tag followed by every tag derived from it.
func TagsFor(tag string) []string {
	return append([]string{tag}, dependents[tag]...)
}

// Notifier is told about every completed invalidation.
type Notifier interface {
	CatalogChanged(code string, tags, paths []string)
}

// Coordinator invalidates cached output after a successful mutation.
type Coordinator struct {
	tags   []TagInvalidator
	paths  []PathInvalidator
	notify []Notifier
	logger *zap.Logger
}

type Option func(*Coordinator)

func WithTagInvalidator(t TagInvalidator) Option {
	return func(c *Coordinator) { c.tags = append(c.tags, t) }
}

func WithPathInvalidator(p PathInvalidator) Option {
	return func(c *Coordinator) { c.paths = append(c.paths, p) }
}

// WithWebhook registers w for both tags and paths.
func WithWebhook(w *WebhookPurger) Option {
	return func(c *Coordinator) {
		c.tags = append(c.tags, w)
		c.paths = append(c.paths, w)
	}
}

func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notify = append(c.notify, n) }
}

func NewCoordinator(logger *zap.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{logger: logger.Named("invalidate")}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PathsFor lists the rendered paths that embed code.
func PathsFor(raw string) []string {
	c, err := code.Parse(raw)
	if err != nil {
		return []string{"/", "/exercises"}
	}
	return []string{
		"/exercises/" + c.String(),
		fmt.Sprintf("/series/%d", c.Series),
		"/",
		"/exercises",
	}
}

// AfterMutation invalidates the exercises tag and every path embedding the
// mutated code. Every invalidator is attempted; the first failure is
// returned.
func (c *Coordinator) AfterMutation(ctx context.Context, raw string) error {
	normalized := code.Normalize(raw)
	tags := []string{TagExercises}
	paths := PathsFor(normalized)

	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}

	for _, tag := range tags {
		keep(c.invalidateTag(ctx, tag))
	}
	for _, p := range paths {
		keep(c.invalidatePath(ctx, p))
	}

	if first != nil {
		c.logger.Error("invalidation failed", zap.String("code", normalized), zap.Error(first))
		return fmt.Errorf("invalidate %s: %w", normalized, first)
	}

	c.logger.Info("catalog invalidated", zap.String("code", normalized), zap.Strings("paths", paths))
	for _, n := range c.notify {
		n.CatalogChanged(normalized, tags, paths)
	}
	return nil
}

// Revalidate purges tag and its dependent tags on request. Both catalog
// tags feed every rendered page, so the page caches are emptied too.
func (c *Coordinator) Revalidate(ctx context.Context, tag string) error {
	tags := TagsFor(tag)

	var first error
	for _, t := range tags {
		if err := c.invalidateTag(ctx, t); err != nil && first == nil {
			first = err
		}
	}
	if err := c.invalidateAllPaths(ctx); err != nil && first == nil {
		first = err
	}
	if first != nil {
		return fmt.Errorf("revalidate %s: %w", tag, first)
	}

	c.logger.Info("tag revalidated", zap.String("tag", tag), zap.Strings("tags", tags))
	for _, n := range c.notify {
		n.CatalogChanged("", tags, nil)
	}
	return nil
}

func (c *Coordinator) invalidateAllPaths(ctx context.Context) error {
	var first error
	for _, p := range c.paths {
		all, ok := p.(AllPathsInvalidator)
		if !ok {
			continue
		}
		err := all.InvalidateAll(ctx)
		metrics.Invalidations.WithLabelValues("path", metrics.Status(err)).Inc()
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *Coordinator) invalidateTag(ctx context.Context, tag string) error {
	var first error
	for _, t := range c.tags {
		err := t.InvalidateTag(ctx, tag)
		metrics.Invalidations.WithLabelValues("tag", metrics.Status(err)).Inc()
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (c *Coordinator) invalidatePath(ctx context.Context, path string) error {
	var first error
	for _, p := range c.paths {
		err := p.InvalidatePath(ctx, path)
		metrics.Invalidations.WithLabelValues("path", metrics.Status(err)).Inc()
		if err != nil && first == nil {
			first = err
		}
	}
	return first
}
