// Package editorial classifies exercise codes by the editorial document that
// covers them: the master reference, the secondary report, or neither.
package editorial

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"exercisehub/internal/cache"
	"exercisehub/internal/code"
	"exercisehub/internal/metrics"
)

type Source string

const (
	Master   Source = "master"
	Report   Source = "report"
	Fallback Source = "fallback"
)

// A code token at the start of a line, after an optional list number,
// markdown heading marks and bold markers.
var tokenRe = regexp.MustCompile(`^\s*(?:\d+[.)]?\s*)?(?:#{1,6}\s*)?\**\s*([Ss]\s*[1-5]\s*[-_` + code.Dashes + `]\s*\d{1,2})\b`)

const mapKey = "map"

type Classifier struct {
	fsys       fs.FS
	masterGlob string
	reportGlob string
	cache      *cache.Tagged
	logger     *zap.Logger
}

// NewClassifier scans documents in fsys matching the two glob patterns. A nil
// cache gets a private one.
func NewClassifier(fsys fs.FS, masterGlob, reportGlob string, tagged *cache.Tagged, logger *zap.Logger) *Classifier {
	if tagged == nil {
		tagged = cache.NewTagged(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		fsys:       fsys,
		masterGlob: masterGlob,
		reportGlob: reportGlob,
		cache:      tagged,
		logger:     logger.Named("editorial"),
	}
}

// Classify returns the most authoritative source mentioning raw.
func (c *Classifier) Classify(ctx context.Context, raw string) Source {
	n := code.Normalize(raw)
	if !code.IsValid(n) {
		return Fallback
	}
	if src, ok := c.Map(ctx)[n]; ok {
		return src
	}
	return Fallback
}

// Map returns the classification of every code found in either document.
// The result is shared and must not be modified.
func (c *Classifier) Map(ctx context.Context) map[string]Source {
	m, err := cache.RememberIf(ctx, c.cache, cache.TagEditorial, mapKey, c.build)
	if err != nil {
		return map[string]Source{}
	}
	return m
}

func (c *Classifier) build(context.Context) (map[string]Source, bool, error) {
	metrics.EditorialScans.Inc()

	master, okMaster := c.scanGlob(c.masterGlob)
	report, okReport := c.scanGlob(c.reportGlob)

	out := make(map[string]Source, len(master)+len(report))
	for k := range report {
		out[k] = Report
	}
	for k := range master {
		out[k] = Master
	}

	c.logger.Debug("editorial map built",
		zap.Int("master", len(master)),
		zap.Int("report", len(report)),
	)
	return out, okMaster && okReport, nil
}

// scanGlob collects codes from every file matching pattern. ok is false when
// a document exists but could not be read, so the result is not memoized.
func (c *Classifier) scanGlob(pattern string) (codes map[string]struct{}, ok bool) {
	codes = make(map[string]struct{})
	if c.fsys == nil || pattern == "" {
		return codes, true
	}

	matches, err := doublestar.Glob(c.fsys, pattern)
	if err != nil {
		c.logger.Warn("bad editorial glob", zap.String("pattern", pattern), zap.Error(err))
		return codes, true
	}
	sort.Strings(matches)

	ok = true
	for _, name := range matches {
		if err := scanFile(c.fsys, name, codes); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			c.logger.Warn("read editorial document", zap.String("path", name), zap.Error(err))
			ok = false
		}
	}
	return codes, ok
}

func scanFile(fsys fs.FS, name string, into map[string]struct{}) error {
	f, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if tok, ok := ScanLine(sc.Text()); ok {
			into[tok] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", name, err)
	}
	return nil
}

// ScanLine returns the normalized code at the head of line, if any.
func ScanLine(line string) (string, bool) {
	m := tokenRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	n := code.Normalize(code.NormalizeSeparators(m[1]))
	return n, code.IsValid(n)
}
