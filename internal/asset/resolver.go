// Package asset resolves the hero image of an exercise from the public asset
// root, probing extensions in preference order and sniffing content to catch
// vector files saved under a raster extension.
package asset

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"path"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"exercisehub/internal/code"
	"exercisehub/internal/metrics"
	"exercisehub/pkg/models"
)

// ErrNoFilesystem is the panic value when a Resolver without a filesystem is
// used. Resolution needs local disk access and is only valid in the server.
var ErrNoFilesystem = errors.New("asset resolver used without a filesystem")

// Extensions in preference order: modern compressed, legacy raster, vector.
var Extensions = []string{"avif", "webp", "png", "jpg", "jpeg", "gif", "svg"}

// sniffSize is the fixed header read per candidate file.
const sniffSize = 512

const assetDir = "exercises"

type cached struct {
	asset *models.HeroAsset
}

// Resolver memoizes hero assets per normalized code for its lifetime.
type Resolver struct {
	fsys   fs.FS
	logger *zap.Logger

	cache sync.Map // code -> cached
	group singleflight.Group
}

// NewResolver creates a resolver over the public asset root.
func NewResolver(fsys fs.FS, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{fsys: fsys, logger: logger.Named("assets")}
}

// ResolveHero returns the hero asset for a code, or nil when the code is
// invalid or no image exists. Results, including misses, are cached.
func (r *Resolver) ResolveHero(raw string) *models.HeroAsset {
	if r == nil || r.fsys == nil {
		panic(ErrNoFilesystem)
	}
	c, err := code.Parse(raw)
	if err != nil {
		return nil
	}
	key := c.String()

	if v, ok := r.cache.Load(key); ok {
		a := v.(cached).asset
		metrics.AssetLookups.WithLabelValues("hit", outcome(a)).Inc()
		return copyAsset(a)
	}

	v, _, _ := r.group.Do(key, func() (any, error) {
		if v, ok := r.cache.Load(key); ok {
			return v.(cached).asset, nil
		}
		a := r.scan(c)
		r.cache.Store(key, cached{asset: a})
		return a, nil
	})
	a := v.(*models.HeroAsset)
	metrics.AssetLookups.WithLabelValues("miss", outcome(a)).Inc()
	return copyAsset(a)
}

// Invalidate drops every memoized resolution.
func (r *Resolver) Invalidate() {
	r.cache.Range(func(k, _ any) bool {
		r.cache.Delete(k)
		return true
	})
}

func (r *Resolver) scan(c code.Code) *models.HeroAsset {
	base := path.Join(assetDir, c.SeriesDir(), c.String())
	for _, ext := range Extensions {
		p := base + "." + ext
		if !r.exists(p) {
			continue
		}
		if ext == "svg" {
			return &models.HeroAsset{Src: "/" + p, IsSVG: true}
		}

		mislabeled, err := detectMislabeledAsset(r.fsys, p)
		if err != nil {
			r.logger.Debug("sniff failed", zap.String("path", p), zap.Error(err))
			continue
		}
		if !mislabeled {
			return &models.HeroAsset{Src: "/" + p}
		}

		sibling := base + ".svg"
		if r.exists(sibling) {
			r.logger.Info("mislabeled vector asset, using sibling",
				zap.String("path", p), zap.String("sibling", sibling))
			return &models.HeroAsset{Src: "/" + sibling, IsSVG: true}
		}
		r.logger.Info("mislabeled vector asset", zap.String("path", p))
		return &models.HeroAsset{Src: "/" + p, IsSVG: true}
	}
	return nil
}

func (r *Resolver) exists(p string) bool {
	info, err := fs.Stat(r.fsys, p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("stat failed", zap.String("path", p), zap.Error(err))
		}
		return false
	}
	return info.Mode().IsRegular()
}

var (
	utf8BOM      = []byte{0xEF, 0xBB, 0xBF}
	svgSignature = []byte("<svg")
)

// detectMislabeledAsset reads one fixed-size header and reports whether the
// file is SVG markup regardless of its extension.
func detectMislabeledAsset(fsys fs.FS, p string) (bool, error) {
	f, err := fsys.Open(p)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, sniffSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	head := bytes.TrimPrefix(buf[:n], utf8BOM)
	return bytes.Contains(bytes.ToLower(head), svgSignature), nil
}

func outcome(a *models.HeroAsset) string {
	if a == nil {
		return "missing"
	}
	return "found"
}

func copyAsset(a *models.HeroAsset) *models.HeroAsset {
	if a == nil {
		return nil
	}
	out := *a
	return &out
}
