// Package exercise resolves the effective exercise sheets: static base
// records merged with admin overrides, plus admin-created custom exercises.
package exercise

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"exercisehub/internal/cache"
	"exercisehub/internal/code"
	"exercisehub/internal/editorial"
	"exercisehub/internal/index"
	"exercisehub/internal/metrics"
	"exercisehub/internal/overrides"
	"exercisehub/pkg/models"
)

var (
	ErrNotFound = errors.New("exercise not found")
	// ErrConflict matches every *ConflictError.
	ErrConflict      = errors.New("exercise already exists")
	ErrInvalidRecord = errors.New("invalid exercise record")
)

type Reason string

const (
	ReasonExistsInBase      Reason = "exists_in_base"
	ReasonExistsInOverrides Reason = "exists_in_overrides"
)

type ConflictError struct {
	Code   string
	Reason Reason
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ReasonExistsInBase:
		return fmt.Sprintf("code %s already exists in base", e.Code)
	default:
		return fmt.Sprintf("code %s already customized", e.Code)
	}
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

type Origin string

const (
	OriginBase   Origin = "base"
	OriginCustom Origin = "custom"
)

// Sheet is an effective record as served to readers.
type Sheet struct {
	models.ExerciseRecord
	Origin          Origin           `json:"origin"`
	Overridden      bool             `json:"overridden"`
	ImageIsSVG      bool             `json:"image_is_svg"`
	EditorialSource editorial.Source `json:"editorial_source"`
	// Degraded marks a base-only result served while the store was down.
	Degraded bool `json:"degraded,omitempty"`
}

func (s Sheet) clone() Sheet {
	s.ExerciseRecord = s.ExerciseRecord.Clone()
	return s
}

// Store is the subset of the override store the service needs.
type Store interface {
	Get(ctx context.Context, code string) (*models.Override, error)
	Set(ctx context.Context, code string, patch models.Override) error
	List(ctx context.Context) ([]models.StoredOverride, error)
	GetCustom(ctx context.Context, code string) (*models.ExerciseRecord, error)
	CreateCustom(ctx context.Context, rec models.ExerciseRecord) error
	ListCustom(ctx context.Context) ([]models.StoredCustom, error)
}

type Assets interface {
	ResolveHero(code string) *models.HeroAsset
}

type Classifier interface {
	Classify(ctx context.Context, code string) editorial.Source
}

// Invalidator runs after every successful mutation.
type Invalidator interface {
	AfterMutation(ctx context.Context, code string) error
}

type Service struct {
	catalog       *index.Catalog
	store         Store
	assets        Assets
	editorial     Classifier
	cache         *cache.Tagged
	invalidator   Invalidator
	fallbackImage string
	logger        *zap.Logger
}

type Option func(*Service)

func WithAssets(a Assets) Option { return func(s *Service) { s.assets = a } }

func WithClassifier(c Classifier) Option { return func(s *Service) { s.editorial = c } }

func WithCache(c *cache.Tagged) Option { return func(s *Service) { s.cache = c } }

func WithInvalidator(i Invalidator) Option { return func(s *Service) { s.invalidator = i } }

// WithFallbackImage sets the image reported when no hero asset exists.
func WithFallbackImage(src string) Option { return func(s *Service) { s.fallbackImage = src } }

func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.logger = l } }

func NewService(catalog *index.Catalog, store Store, opts ...Option) *Service {
	s := &Service{catalog: catalog, store: store}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = cache.NewTagged(0)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("exercise")
	return s
}

func (s *Service) Catalog() *index.Catalog { return s.catalog }

// Resolve returns the effective sheet for raw. Invalid and unknown codes
// both yield ErrNotFound.
func (s *Service) Resolve(ctx context.Context, raw string) (*Sheet, error) {
	n := code.Normalize(raw)
	if !code.IsValid(n) {
		return nil, fmt.Errorf("%w: %w", ErrNotFound, code.ErrInvalidCode)
	}

	sh, err := cache.RememberIf(ctx, s.cache, cache.TagExercises, "detail:"+n,
		func(ctx context.Context) (*Sheet, bool, error) {
			sh, err := s.resolve(ctx, n)
			if err != nil {
				return nil, false, err
			}
			return sh, !sh.Degraded, nil
		})
	if err != nil {
		return nil, err
	}
	out := sh.clone()
	return &out, nil
}

func (s *Service) resolve(ctx context.Context, n string) (*Sheet, error) {
	if base, ok := s.catalog.Base(n); ok {
		sh := Sheet{Origin: OriginBase}
		ov, err := s.store.Get(ctx, n)
		if err != nil {
			s.degraded(n, err)
			sh.Degraded = true
			ov = nil
		}
		sh.ExerciseRecord = ApplyOverride(base, ov)
		sh.Overridden = ov != nil
		s.present(ctx, &sh)
		return &sh, nil
	}

	custom, err := s.store.GetCustom(ctx, n)
	if err != nil {
		s.degraded(n, err)
		return nil, fmt.Errorf("%w: %s", ErrNotFound, n)
	}
	if custom == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, n)
	}

	sh := Sheet{Origin: OriginCustom}
	ov, err := s.store.Get(ctx, n)
	if err != nil {
		s.degraded(n, err)
		sh.Degraded = true
		ov = nil
	}
	sh.ExerciseRecord = ApplyOverride(*custom, ov)
	sh.Overridden = ov != nil
	s.present(ctx, &sh)
	return &sh, nil
}

func (s *Service) degraded(n string, err error) {
	metrics.DegradedReads.Inc()
	s.logger.Warn("override store read failed, serving base only", zap.String("code", n), zap.Error(err))
}

// present fills the fields derived at read time: image and editorial source.
func (s *Service) present(ctx context.Context, sh *Sheet) {
	n := sh.Code
	if sh.Series == "" {
		if c, err := code.Parse(n); err == nil {
			sh.Series = c.SeriesDir()
		}
	}

	if sh.Image != "" {
		sh.ImageIsSVG = strings.HasSuffix(strings.ToLower(sh.Image), ".svg")
	} else if s.assets != nil {
		if hero := s.assets.ResolveHero(n); hero != nil {
			sh.Image = hero.Src
			sh.ImageIsSVG = hero.IsSVG
		}
	}
	if sh.Image == "" {
		sh.Image = s.fallbackImage
	}

	sh.EditorialSource = editorial.Fallback
	if s.editorial != nil {
		sh.EditorialSource = s.editorial.Classify(ctx, n)
	}
}

// ListAll returns every base and custom sheet ordered by code.
func (s *Service) ListAll(ctx context.Context) ([]Sheet, error) {
	list, err := cache.RememberIf(ctx, s.cache, cache.TagExercises, "list",
		func(ctx context.Context) ([]Sheet, bool, error) {
			list, degraded := s.listAll(ctx)
			return list, !degraded, nil
		})
	if err != nil {
		return nil, err
	}
	out := make([]Sheet, len(list))
	for i := range list {
		out[i] = list[i].clone()
	}
	return out, nil
}

func (s *Service) listAll(ctx context.Context) ([]Sheet, bool) {
	degraded := false

	ovs := map[string]*models.Override{}
	if stored, err := s.store.List(ctx); err != nil {
		s.degraded("*", err)
		degraded = true
	} else {
		for i := range stored {
			ovs[stored[i].Code] = &stored[i].Override
		}
	}

	customs := map[string]models.ExerciseRecord{}
	if !degraded {
		if stored, err := s.store.ListCustom(ctx); err != nil {
			s.degraded("*", err)
			degraded = true
			ovs = map[string]*models.Override{}
		} else {
			for _, c := range stored {
				customs[code.Normalize(c.Record.Code)] = c.Record
			}
		}
	}

	codes := s.catalog.Codes()
	for k := range customs {
		if !s.catalog.Has(k) {
			codes = append(codes, k)
		}
	}
	sort.Strings(codes)

	out := make([]Sheet, 0, len(codes))
	for _, n := range codes {
		var sh Sheet
		if base, ok := s.catalog.Base(n); ok {
			sh.Origin = OriginBase
			sh.ExerciseRecord = ApplyOverride(base, ovs[n])
		} else {
			sh.Origin = OriginCustom
			sh.ExerciseRecord = ApplyOverride(customs[n], ovs[n])
		}
		sh.Overridden = ovs[n] != nil
		sh.Degraded = degraded
		s.present(ctx, &sh)
		out = append(out, sh)
	}
	return out, degraded
}

// ListSeries returns the sheets of one series, ordered by code.
func (s *Service) ListSeries(ctx context.Context, series int) ([]Sheet, error) {
	if series < code.MinSeries || series > code.MaxSeries {
		return nil, fmt.Errorf("%w: series %d", ErrNotFound, series)
	}
	all, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	prefix := code.SeriesDir(series) + "-"
	out := make([]Sheet, 0)
	for _, sh := range all {
		if strings.HasPrefix(sh.Code, prefix) {
			out = append(out, sh)
		}
	}
	return out, nil
}

// Create stores rec as a custom exercise. The code must be unused both in the
// base catalog and among custom exercises.
func (s *Service) Create(ctx context.Context, rec models.ExerciseRecord) (*Sheet, error) {
	n := code.Normalize(rec.Code)
	if !code.IsValid(n) {
		return nil, fmt.Errorf("%w: %q", code.ErrInvalidCode, rec.Code)
	}
	rec.Title = strings.TrimSpace(rec.Title)
	if rec.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidRecord)
	}

	if s.catalog.Has(n) {
		return nil, &ConflictError{Code: n, Reason: ReasonExistsInBase}
	}
	existing, err := s.store.GetCustom(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("check custom %s: %w", n, err)
	}
	if existing != nil {
		return nil, &ConflictError{Code: n, Reason: ReasonExistsInOverrides}
	}

	c, _ := code.Parse(n)
	rec = rec.Clone()
	rec.Code = n
	rec.Series = c.SeriesDir()

	if err := s.store.CreateCustom(ctx, rec); err != nil {
		if errors.Is(err, overrides.ErrExists) {
			return nil, &ConflictError{Code: n, Reason: ReasonExistsInOverrides}
		}
		return nil, fmt.Errorf("create custom %s: %w", n, err)
	}
	s.logger.Info("custom exercise created", zap.String("code", n))

	if err := s.afterMutation(ctx, n); err != nil {
		return nil, err
	}
	return s.Resolve(ctx, n)
}

// SetOverride replaces the override of an existing code.
func (s *Service) SetOverride(ctx context.Context, raw string, patch models.Override) (*Sheet, error) {
	n := code.Normalize(raw)
	if !code.IsValid(n) {
		return nil, fmt.Errorf("%w: %q", code.ErrInvalidCode, raw)
	}

	if !s.catalog.Has(n) {
		custom, err := s.store.GetCustom(ctx, n)
		if err != nil {
			return nil, fmt.Errorf("check custom %s: %w", n, err)
		}
		if custom == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, n)
		}
	}

	if err := s.store.Set(ctx, n, patch); err != nil {
		return nil, fmt.Errorf("set override %s: %w", n, err)
	}
	s.logger.Info("override saved", zap.String("code", n))

	if err := s.afterMutation(ctx, n); err != nil {
		return nil, err
	}
	return s.Resolve(ctx, n)
}

func (s *Service) afterMutation(ctx context.Context, n string) error {
	if s.invalidator == nil {
		return s.cache.InvalidateTag(ctx, cache.TagExercises)
	}
	if err := s.invalidator.AfterMutation(ctx, n); err != nil {
		return fmt.Errorf("invalidate after mutation: %w", err)
	}
	return nil
}
