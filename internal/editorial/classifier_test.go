package editorial

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exercisehub/internal/cache"
	"exercisehub/internal/code"
)

const masterDoc = `# Référentiel

## S1-01 Squat au poids du corps
1. S1–02 Fente avant
**S2-3** Pont fessier
Texte libre mentionnant S4-01 au milieu d'une phrase.
`

const reportDoc = `Rapport annuel
### s1_02 Fente avant
3) S3 - 07 Gainage
S4‑10 — tirage
`

func TestScanLine(t *testing.T) {
	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"S1-01 Squat", "S1-01", true},
		{"  ## S1-01", "S1-01", true},
		{"12. S2–05 titre", "S2-05", true},
		{"3) **s3_7**", "S3-07", true},
		{"S4−10", "S4-10", true},
		{"S5－01", "S5-01", true},
		{"S2﹘03 small em dash", "S2-03", true},
		{"S6-01 hors série", "", false},
		{"voir S1-01", "", false},
		{"S1-123", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ScanLine(tt.line)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestScanLineAcceptsEveryNormalizerDash(t *testing.T) {
	for _, r := range code.Dashes {
		line := "S3" + string(r) + "07 titre"
		got, ok := ScanLine(line)
		assert.True(t, ok, "%U", r)
		assert.Equal(t, code.Normalize("S3"+string(r)+"07"), got, "%U", r)
	}
}

func TestClassify(t *testing.T) {
	fsys := fstest.MapFS{
		"editorial/master.md":        {Data: []byte(masterDoc)},
		"editorial/reports/2025.md":  {Data: []byte(reportDoc)},
		"editorial/reports/notes.md": {Data: []byte("S5-09 note\n")},
	}
	c := NewClassifier(fsys, "editorial/master.md", "editorial/reports/**/*.md", nil, nil)
	ctx := context.Background()

	assert.Equal(t, Master, c.Classify(ctx, "S1-01"))
	assert.Equal(t, Master, c.Classify(ctx, "S1-02"), "master wins over report")
	assert.Equal(t, Master, c.Classify(ctx, "2-03"))
	assert.Equal(t, Report, c.Classify(ctx, "S3-07"))
	assert.Equal(t, Report, c.Classify(ctx, "S4-10"))
	assert.Equal(t, Report, c.Classify(ctx, "S5-09"))
	assert.Equal(t, Fallback, c.Classify(ctx, "S4-01"), "mid-sentence mentions do not count")
	assert.Equal(t, Fallback, c.Classify(ctx, "S5-50"))
	assert.Equal(t, Fallback, c.Classify(ctx, "garbage"))
}

func TestClassifyMissingDocuments(t *testing.T) {
	c := NewClassifier(fstest.MapFS{}, "master.md", "report.md", nil, nil)
	assert.Equal(t, Fallback, c.Classify(context.Background(), "S1-01"))
	assert.Empty(t, c.Map(context.Background()))

	noFS := NewClassifier(nil, "master.md", "report.md", nil, nil)
	assert.Equal(t, Fallback, noFS.Classify(context.Background(), "S1-01"))
}

// countingFS counts Open calls to detect rescans.
type countingFS struct {
	fstest.MapFS
	opens int
	fail  bool
}

func (c *countingFS) Open(name string) (fs.File, error) {
	if name != "." && c.fail {
		return nil, errors.New("io error")
	}
	c.opens++
	return c.MapFS.Open(name)
}

func TestClassifyIsMemoizedUntilRevalidated(t *testing.T) {
	fsys := &countingFS{MapFS: fstest.MapFS{
		"master.md": {Data: []byte("S1-01\n")},
		"report.md": {Data: []byte("S2-02\n")},
	}}
	tagged := cache.NewTagged(0)
	c := NewClassifier(fsys, "master.md", "report.md", tagged, nil)
	ctx := context.Background()

	require.Equal(t, Master, c.Classify(ctx, "S1-01"))
	opens := fsys.opens
	for i := 0; i < 5; i++ {
		c.Classify(ctx, "S2-02")
	}
	assert.Equal(t, opens, fsys.opens, "no rescan while the tag is live")

	fsys.MapFS["report.md"] = &fstest.MapFile{Data: []byte("S2-02\nS3-03\n")}
	assert.Equal(t, Fallback, c.Classify(ctx, "S3-03"))

	require.NoError(t, tagged.InvalidateTag(ctx, cache.TagEditorial))
	assert.Equal(t, Report, c.Classify(ctx, "S3-03"))
	assert.Greater(t, fsys.opens, opens)
}

func TestClassifyReadFailureIsNotMemoized(t *testing.T) {
	fsys := &countingFS{MapFS: fstest.MapFS{
		"master.md": {Data: []byte("S1-01\n")},
	}, fail: true}
	tagged := cache.NewTagged(0)
	c := NewClassifier(fsys, "master.md", "", tagged, nil)
	ctx := context.Background()

	assert.Equal(t, Fallback, c.Classify(ctx, "S1-01"))
	assert.Zero(t, tagged.Len(cache.TagEditorial))

	fsys.fail = false
	assert.Equal(t, Master, c.Classify(ctx, "S1-01"))
	assert.Equal(t, 1, tagged.Len(cache.TagEditorial))
}
