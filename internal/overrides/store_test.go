package overrides

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exercisehub/internal/code"
	"exercisehub/pkg/models"
)

func strp(s string) *string { return &s }

func newTestStore(t *testing.T) (*Store, *MemoryKV) {
	t.Helper()
	kv := NewMemoryKV()
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	kv.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	return NewStore(kv, nil), kv
}

func TestStoreSetGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	got, err := s.Get(ctx, "s3_7")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Set(ctx, "3-07", models.Override{Title: strp("Pont fessier"), Dosage: strp("")}))

	got, err = s.Get(ctx, "S3–07")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Pont fessier", *got.Title)
	require.NotNil(t, got.Dosage, "empty value is still present")
	assert.Equal(t, "", *got.Dosage)
	assert.Nil(t, got.Level)

	// full replace, not a merge
	require.NoError(t, s.Set(ctx, "S3-07", models.Override{Level: strp("L2")}))
	got, err = s.Get(ctx, "S3-07")
	require.NoError(t, err)
	assert.Nil(t, got.Title)
	assert.Equal(t, "L2", *got.Level)
}

func TestStoreInvalidCode(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "S9-01")
	assert.ErrorIs(t, err, code.ErrInvalidCode)

	err = s.Set(ctx, "nope", models.Override{})
	assert.ErrorIs(t, err, code.ErrInvalidCode)

	err = s.CreateCustom(ctx, models.ExerciseRecord{Code: ""})
	assert.ErrorIs(t, err, code.ErrInvalidCode)
}

func TestStoreList(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "S2-10", models.Override{Title: strp("b")}))
	require.NoError(t, s.Set(ctx, "S1-01", models.Override{Title: strp("a")}))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "S1-01", list[0].Code)
	assert.Equal(t, "S2-10", list[1].Code)
	assert.True(t, list[0].UpdatedAt.After(list[1].UpdatedAt))
}

func TestStoreCustom(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	rec := models.ExerciseRecord{Code: "s5_40", Title: "Gainage latéral", Safety: []string{"dos neutre"}}
	require.NoError(t, s.CreateCustom(ctx, rec))

	err := s.CreateCustom(ctx, models.ExerciseRecord{Code: "S5-40", Title: "autre"})
	assert.ErrorIs(t, err, ErrExists)

	got, err := s.GetCustom(ctx, "S5-40")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "S5-40", got.Code)
	assert.Equal(t, "Gainage latéral", got.Title)
	assert.Equal(t, []string{"dos neutre"}, got.Safety)

	customs, err := s.ListCustom(ctx)
	require.NoError(t, err)
	require.Len(t, customs, 1)
	assert.Equal(t, "S5-40", customs[0].Record.Code)

	// overrides and customs live under separate keys
	ov, err := s.Get(ctx, "S5-40")
	require.NoError(t, err)
	assert.Nil(t, ov)
}

func TestStoreStats(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, st.Overrides)
	assert.Nil(t, st.LastUpdated)

	require.NoError(t, s.Set(ctx, "S1-01", models.Override{}))
	require.NoError(t, s.CreateCustom(ctx, models.ExerciseRecord{Code: "S5-40", Title: "x"}))
	require.NoError(t, s.Set(ctx, "S1-02", models.Override{}))

	st, err = s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Overrides)
	assert.Equal(t, 1, st.Customs)
	require.NotNil(t, st.LastUpdated)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 3, 0, 0, time.UTC), *st.LastUpdated)
}

func TestStoreUnavailable(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("connection refused")
	kv.SetErr(boom)

	_, err := s.Get(ctx, "S1-01")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, boom)

	err = s.Set(ctx, "S1-01", models.Override{})
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = s.List(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	err = s.CreateCustom(ctx, models.ExerciseRecord{Code: "S5-40"})
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.NotErrorIs(t, err, ErrExists)

	assert.ErrorIs(t, s.Ping(ctx), ErrStoreUnavailable)

	kv.SetErr(nil)
	assert.NoError(t, s.Ping(ctx))
}

func TestStoreCorruptValue(t *testing.T) {
	s, kv := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, "override.S1-01", []byte("{not json")))

	_, err := s.Get(ctx, "S1-01")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}
