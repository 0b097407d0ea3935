package code

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"3-07", "S3-07"},
		{"s3_7", "S3-07"},
		{"S3-07", "S3-07"},
		{"S3–07", "S3-07"},
		{"  s3 - 7 ", "S3-07"},
		{"S1−02", "S1-02"},
		{"s5_10", "S5-10"},
		{"", ""},
		{"   ", ""},
		{"7", "7"},
		{"abc", "ABC"},
		{"s3-ab", "S3-AB"},
		{"s9-1", "S9-01"},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, Normalize(tc.in))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{"3-07", "s3_7", "S3-07", "S3–07", "7", "", "hello world", "s0-00", "S3-123", "ſ3-07"}
	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestIsValid(t *testing.T) {
	valid := []string{"S1-01", "S5-99", "S3-00"}
	for _, c := range valid {
		assert.True(t, IsValid(c), c)
	}

	invalid := []string{"", "S6-01", "S0-01", "s1-01", "S1-1", "S1_01", "S1-001", "S1-AB", "7"}
	for _, c := range invalid {
		assert.False(t, IsValid(c), c)
	}
}

func TestIsValid_RejectsOutOfRangeOrNonNumeric(t *testing.T) {
	for _, in := range []string{"s6-01", "0-01", "9_3", "S3-x1", "S3-", "S-07", "7"} {
		assert.False(t, IsValid(Normalize(in)), "input %q", in)
	}
}

func TestParse(t *testing.T) {
	c, err := Parse("s2_4")
	require.NoError(t, err)
	assert.Equal(t, Code{Series: 2, Number: 4}, c)
	assert.Equal(t, "S2-04", c.String())
	assert.Equal(t, "S2", c.SeriesDir())

	_, err = Parse("nope")
	assert.ErrorIs(t, err, ErrInvalidCode)
}

func TestNormalizeSeparators(t *testing.T) {
	assert.Equal(t, "S3-07", NormalizeSeparators("S3‑07"))
	assert.Equal(t, "S3-07", NormalizeSeparators("S3_07"))
	assert.Equal(t, "no change", NormalizeSeparators("no change"))
}

func TestParseSeries(t *testing.T) {
	n, ok := ParseSeries("S4")
	assert.True(t, ok)
	assert.Equal(t, 4, n)

	n, ok = ParseSeries("2")
	assert.True(t, ok)
	assert.Equal(t, 2, n)

	_, ok = ParseSeries("6")
	assert.False(t, ok)
	_, ok = ParseSeries("x")
	assert.False(t, ok)
}
