// Package index loads the bundled static index of exercise codes and the
// optional catalog of full base records.
package index

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/tailscale/hujson"

	"exercisehub/internal/code"
	"exercisehub/pkg/models"
)

// ErrInvalidIndex is returned when the index source deviates from the
// expected shape.
var ErrInvalidIndex = errors.New("invalid static index")

// Index is the immutable, repaired static index keyed by normalized code.
type Index struct {
	entries []models.IndexEntry
	byCode  map[string]int
}

type rawEntry struct {
	Code   *string `json:"code"`
	Title  *string `json:"title"`
	Series *string `json:"series"`
}

// Load reads and parses the index file at path.
func Load(path string) (*Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w", path, err)
	}
	return Parse(bytes.NewReader(b))
}

// Parse decodes a JSON (comments and trailing commas tolerated) array of
// {code, title, series} objects.
func Parse(r io.Reader) (*Index, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read index: %w", err)
	}
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidIndex, err)
	}

	var items []json.RawMessage
	if err := json.Unmarshal(std, &items); err != nil {
		return nil, fmt.Errorf("%w: top level must be an array: %v", ErrInvalidIndex, err)
	}

	entries := make([]models.IndexEntry, 0, len(items))
	for i, item := range items {
		var raw rawEntry
		if err := json.Unmarshal(item, &raw); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidIndex, i, err)
		}
		switch {
		case raw.Code == nil:
			return nil, fmt.Errorf("%w: entry %d: missing code", ErrInvalidIndex, i)
		case raw.Title == nil:
			return nil, fmt.Errorf("%w: entry %d: missing title", ErrInvalidIndex, i)
		case raw.Series == nil:
			return nil, fmt.Errorf("%w: entry %d: missing series", ErrInvalidIndex, i)
		}
		entries = append(entries, models.IndexEntry{Code: *raw.Code, Title: *raw.Title, Series: *raw.Series})
	}
	return New(entries)
}

// New builds an index from raw entries, normalizing codes and repairing
// titles. Invalid or duplicate codes are rejected.
func New(entries []models.IndexEntry) (*Index, error) {
	ix := &Index{
		entries: make([]models.IndexEntry, 0, len(entries)),
		byCode:  make(map[string]int, len(entries)),
	}
	for i, e := range entries {
		c := code.Normalize(e.Code)
		if !code.IsValid(c) {
			return nil, fmt.Errorf("%w: entry %d: code %q", ErrInvalidIndex, i, e.Code)
		}
		if _, dup := ix.byCode[c]; dup {
			return nil, fmt.Errorf("%w: entry %d: duplicate code %s", ErrInvalidIndex, i, c)
		}
		ix.byCode[c] = -1
		ix.entries = append(ix.entries, models.IndexEntry{
			Code:   c,
			Title:  RepairText(e.Title),
			Series: strings.TrimSpace(e.Series),
		})
	}

	sort.Slice(ix.entries, func(i, j int) bool { return ix.entries[i].Code < ix.entries[j].Code })
	for i, e := range ix.entries {
		ix.byCode[e.Code] = i
	}
	return ix, nil
}

// Get returns the entry for a code in any accepted input shape.
func (ix *Index) Get(raw string) (models.IndexEntry, bool) {
	i, ok := ix.byCode[code.Normalize(raw)]
	if !ok {
		return models.IndexEntry{}, false
	}
	return ix.entries[i], true
}

// BySeries returns the entries whose code belongs to series, ordered by code.
func (ix *Index) BySeries(series int) []models.IndexEntry {
	prefix := code.SeriesDir(series) + "-"
	var out []models.IndexEntry
	for _, e := range ix.entries {
		if strings.HasPrefix(e.Code, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns a copy of all entries ordered by code.
func (ix *Index) Entries() []models.IndexEntry {
	out := make([]models.IndexEntry, len(ix.entries))
	copy(out, ix.entries)
	return out
}

func (ix *Index) Len() int { return len(ix.entries) }
