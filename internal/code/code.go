// Package code parses and canonicalizes exercise codes of the form S<series>-<NN>.
//
// Normalize is total: it never fails and may return a string that IsValid
// rejects. Callers treat an invalid code as not-found.
package code

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidCode is returned by Parse for input that does not normalize to a
// canonical code.
var ErrInvalidCode = errors.New("invalid exercise code")

const (
	MinSeries = 1
	MaxSeries = 5
)

// Dashes holds the hyphen-like runes accepted as separators, in addition to
// '-', '_' and spaces.
const Dashes = "‐‑‒–—―−﹘﹣－"

var (
	shapeRe     = regexp.MustCompile(`^[Ss]?\s*([0-9])\s*[-_\s` + Dashes + `]+\s*([0-9]{1,2})$`)
	canonicalRe = regexp.MustCompile(`^S[1-5]-[0-9]{2}$`)
)

// Code is a parsed, valid exercise code.
type Code struct {
	Series int
	Number int
}

func (c Code) String() string {
	return fmt.Sprintf("S%d-%02d", c.Series, c.Number)
}

// SeriesDir is the asset directory name for the code's series, e.g. "S3".
func (c Code) SeriesDir() string {
	return SeriesDir(c.Series)
}

// SeriesDir formats a series number as its directory / display name.
func SeriesDir(series int) string {
	return "S" + strconv.Itoa(series)
}

// Normalize trims the input and, when it looks like "series + separator +
// number", rewrites it to S<d>-<NN>. Anything else is returned uppercased.
func Normalize(input string) string {
	s := strings.TrimSpace(input)
	if s == "" {
		return ""
	}
	m := shapeRe.FindStringSubmatch(s)
	if m == nil {
		return strings.ToUpper(s)
	}
	n, _ := strconv.Atoi(m[2])
	return fmt.Sprintf("S%s-%02d", m[1], n)
}

// IsValid reports whether code is already in canonical form with a series
// between 1 and 5.
func IsValid(code string) bool {
	return canonicalRe.MatchString(code)
}

// Parse normalizes input and returns the structured code.
func Parse(input string) (Code, error) {
	s := Normalize(input)
	if !IsValid(s) {
		return Code{}, fmt.Errorf("%w: %q", ErrInvalidCode, input)
	}
	series := int(s[1] - '0')
	n, _ := strconv.Atoi(s[3:])
	return Code{Series: series, Number: n}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(input string) Code {
	c, err := Parse(input)
	if err != nil {
		panic(err)
	}
	return c
}

// NormalizeSeparators replaces every hyphen-like rune and underscore with a
// plain '-' and drops surrounding spaces, leaving other text untouched.
func NormalizeSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '_' || strings.ContainsRune(Dashes, r) {
			b.WriteByte('-')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseSeries accepts "3" or "S3" (any case) and returns the series number.
func ParseSeries(input string) (int, bool) {
	s := strings.TrimSpace(input)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "S"), "s")
	n, err := strconv.Atoi(s)
	if err != nil || n < MinSeries || n > MaxSeries {
		return 0, false
	}
	return n, true
}
