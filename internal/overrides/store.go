package overrides

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"exercisehub/internal/code"
	"exercisehub/internal/metrics"
	"exercisehub/pkg/models"
)

const (
	overridePrefix = "override."
	customPrefix   = "custom."
)

// Store keeps overrides and custom exercises keyed by normalized code.
type Store struct {
	kv     KV
	logger *zap.Logger
}

func NewStore(kv KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, logger: logger.Named("overrides")}
}

// Stats summarizes the store for the admin status endpoint.
type Stats struct {
	Overrides   int
	Customs     int
	LastUpdated *time.Time
}

func keyFor(prefix, raw string) (string, string, error) {
	c := code.Normalize(raw)
	if !code.IsValid(c) {
		return "", "", fmt.Errorf("%w: %q", code.ErrInvalidCode, raw)
	}
	return prefix + c, c, nil
}

func unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func (s *Store) observe(op string, start time.Time, err error) {
	metrics.StoreOpDuration.WithLabelValues(op, metrics.Status(err)).Observe(time.Since(start).Seconds())
	if err != nil {
		s.logger.Warn("store operation failed", zap.String("op", op), zap.Error(err))
	}
}

// Get returns the override for raw, or nil when none is stored.
func (s *Store) Get(ctx context.Context, raw string) (o *models.Override, err error) {
	key, c, err := keyFor(overridePrefix, raw)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { s.observe("get", start, err) }(time.Now())

	e, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, unavailable("get override "+c, err)
	}
	if e == nil {
		return nil, nil
	}

	var out models.Override
	if err := json.Unmarshal(e.Value, &out); err != nil {
		return nil, fmt.Errorf("decode override %s: %w", c, err)
	}
	return &out, nil
}

// Set replaces the stored override for raw.
func (s *Store) Set(ctx context.Context, raw string, patch models.Override) (err error) {
	key, c, err := keyFor(overridePrefix, raw)
	if err != nil {
		return err
	}
	defer func(start time.Time) { s.observe("set", start, err) }(time.Now())

	b, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode override %s: %w", c, err)
	}
	if err := s.kv.Put(ctx, key, b); err != nil {
		return unavailable("set override "+c, err)
	}
	return nil
}

// List returns every stored override ordered by code.
func (s *Store) List(ctx context.Context) (out []models.StoredOverride, err error) {
	defer func(start time.Time) { s.observe("list", start, err) }(time.Now())

	keys, err := s.kv.Keys(ctx, overridePrefix)
	if err != nil {
		return nil, unavailable("list overrides", err)
	}

	out = make([]models.StoredOverride, 0, len(keys))
	for _, key := range keys {
		e, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, unavailable("get "+key, err)
		}
		if e == nil {
			continue
		}
		var o models.Override
		if err := json.Unmarshal(e.Value, &o); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, models.StoredOverride{
			Code:      strings.TrimPrefix(key, overridePrefix),
			Override:  o,
			UpdatedAt: e.UpdatedAt,
		})
	}
	return out, nil
}

// GetCustom returns the custom exercise for raw, or nil.
func (s *Store) GetCustom(ctx context.Context, raw string) (rec *models.ExerciseRecord, err error) {
	key, c, err := keyFor(customPrefix, raw)
	if err != nil {
		return nil, err
	}
	defer func(start time.Time) { s.observe("get_custom", start, err) }(time.Now())

	e, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, unavailable("get custom "+c, err)
	}
	if e == nil {
		return nil, nil
	}

	var out models.ExerciseRecord
	if err := json.Unmarshal(e.Value, &out); err != nil {
		return nil, fmt.Errorf("decode custom %s: %w", c, err)
	}
	return &out, nil
}

// CreateCustom stores rec under its code. It fails with ErrExists when a
// custom exercise is already stored for that code.
func (s *Store) CreateCustom(ctx context.Context, rec models.ExerciseRecord) (err error) {
	key, c, err := keyFor(customPrefix, rec.Code)
	if err != nil {
		return err
	}
	defer func(start time.Time) { s.observe("create_custom", start, err) }(time.Now())

	rec.Code = c
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode custom %s: %w", c, err)
	}
	if err := s.kv.Create(ctx, key, b); err != nil {
		if errors.Is(err, ErrExists) {
			return fmt.Errorf("create custom %s: %w", c, ErrExists)
		}
		return unavailable("create custom "+c, err)
	}
	return nil
}

// ListCustom returns every custom exercise ordered by code.
func (s *Store) ListCustom(ctx context.Context) (out []models.StoredCustom, err error) {
	defer func(start time.Time) { s.observe("list_custom", start, err) }(time.Now())

	keys, err := s.kv.Keys(ctx, customPrefix)
	if err != nil {
		return nil, unavailable("list customs", err)
	}

	out = make([]models.StoredCustom, 0, len(keys))
	for _, key := range keys {
		e, err := s.kv.Get(ctx, key)
		if err != nil {
			return nil, unavailable("get "+key, err)
		}
		if e == nil {
			continue
		}
		var rec models.ExerciseRecord
		if err := json.Unmarshal(e.Value, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		out = append(out, models.StoredCustom{Record: rec, UpdatedAt: e.UpdatedAt})
	}
	return out, nil
}

func (s *Store) Ping(ctx context.Context) (err error) {
	defer func(start time.Time) { s.observe("ping", start, err) }(time.Now())
	return unavailable("ping", s.kv.Ping(ctx))
}

// Stats counts stored entries and finds the most recent write across both
// overrides and custom exercises.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats

	ovs, err := s.List(ctx)
	if err != nil {
		return st, err
	}
	customs, err := s.ListCustom(ctx)
	if err != nil {
		return st, err
	}

	st.Overrides = len(ovs)
	st.Customs = len(customs)

	bump := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if st.LastUpdated == nil || t.After(*st.LastUpdated) {
			tt := t
			st.LastUpdated = &tt
		}
	}
	for _, o := range ovs {
		bump(o.UpdatedAt)
	}
	for _, c := range customs {
		bump(c.UpdatedAt)
	}
	return st, nil
}
