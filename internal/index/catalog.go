package index

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/tailscale/hujson"

	"exercisehub/internal/code"
	"exercisehub/pkg/models"
)

// Catalog is the read-only base set: index entries enriched with full sheet
// content where the bundle provides it.
type Catalog struct {
	index   *Index
	content map[string]models.ExerciseRecord
	codes   []string
}

// LoadCatalog loads the index and, when contentPath is non-empty, the full
// records file.
func LoadCatalog(indexPath, contentPath string) (*Catalog, error) {
	ix, err := Load(indexPath)
	if err != nil {
		return nil, err
	}
	var records []models.ExerciseRecord
	if contentPath != "" {
		records, err = loadRecords(contentPath)
		if err != nil {
			return nil, err
		}
	}
	return NewCatalog(ix, records)
}

func loadRecords(path string) ([]models.ExerciseRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	std, err := hujson.Standardize(b)
	if err != nil {
		return nil, fmt.Errorf("%w: catalog: %v", ErrInvalidIndex, err)
	}
	var records []models.ExerciseRecord
	if err := json.Unmarshal(std, &records); err != nil {
		return nil, fmt.Errorf("%w: catalog: %v", ErrInvalidIndex, err)
	}
	return records, nil
}

// NewCatalog combines an index with full records. A record whose code is not
// in the index still counts as a base record.
func NewCatalog(ix *Index, records []models.ExerciseRecord) (*Catalog, error) {
	c := &Catalog{
		index:   ix,
		content: make(map[string]models.ExerciseRecord, len(records)),
	}
	seen := make(map[string]struct{}, ix.Len()+len(records))
	for _, e := range ix.entries {
		seen[e.Code] = struct{}{}
	}
	for i, r := range records {
		parsed, err := code.Parse(r.Code)
		if err != nil {
			return nil, fmt.Errorf("%w: catalog record %d: %v", ErrInvalidIndex, i, err)
		}
		r.Code = parsed.String()
		r.Series = parsed.SeriesDir()
		r.Title = RepairText(r.Title)
		c.content[r.Code] = r.Clone()
		seen[r.Code] = struct{}{}
	}

	c.codes = make([]string, 0, len(seen))
	for k := range seen {
		c.codes = append(c.codes, k)
	}
	sort.Strings(c.codes)
	return c, nil
}

// Base returns the base record for a code, or false when the code is not part
// of the static catalog.
func (c *Catalog) Base(raw string) (models.ExerciseRecord, bool) {
	parsed, err := code.Parse(raw)
	if err != nil {
		return models.ExerciseRecord{}, false
	}
	key := parsed.String()

	entry, inIndex := c.index.Get(key)
	rec, hasContent := c.content[key]
	switch {
	case hasContent:
		rec = rec.Clone()
		if rec.Title == "" && inIndex {
			rec.Title = entry.Title
		}
		return rec, true
	case inIndex:
		return models.ExerciseRecord{
			Code:   key,
			Series: parsed.SeriesDir(),
			Title:  entry.Title,
		}, true
	default:
		return models.ExerciseRecord{}, false
	}
}

// Has reports whether the code is a base code.
func (c *Catalog) Has(raw string) bool {
	_, ok := c.Base(raw)
	return ok
}

// Codes returns every base code in order.
func (c *Catalog) Codes() []string {
	out := make([]string, len(c.codes))
	copy(out, c.codes)
	return out
}

func (c *Catalog) Index() *Index { return c.index }
