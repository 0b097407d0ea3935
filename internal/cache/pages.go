package cache

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

type page struct {
	status      int
	contentType string
	body        []byte
	expires     time.Time
}

// Pages caches rendered GET responses by request path. Query variants of the
// same path are cached separately but invalidated together.
type Pages struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.Mutex
	pages map[string]map[string]page
	gen   map[string]uint64
	// epoch is bumped by InvalidateAll and covers paths not yet in gen
	epoch uint64
}

func NewPages(ttl time.Duration) *Pages {
	return &Pages{
		ttl:   ttl,
		now:   time.Now,
		pages: make(map[string]map[string]page),
		gen:   make(map[string]uint64),
	}
}

type recorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (r *recorder) Write(b []byte) (int, error) {
	r.buf.Write(b)
	return r.ResponseWriter.Write(b)
}

func (r *recorder) WriteString(s string) (int, error) {
	r.buf.WriteString(s)
	return r.ResponseWriter.WriteString(s)
}

// Middleware serves cached pages and records successful GET responses.
func (p *Pages) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		variant := c.Request.URL.RawQuery

		if pg, ok := p.get(path, variant); ok {
			c.Header("X-Cache", "HIT")
			c.Data(pg.status, pg.contentType, pg.body)
			c.Abort()
			return
		}

		gen := p.generation(path)
		rec := &recorder{ResponseWriter: c.Writer}
		c.Writer = rec
		c.Header("X-Cache", "MISS")
		c.Next()

		if rec.Status() != http.StatusOK || c.GetBool(NoStoreKey) {
			return
		}
		p.put(path, variant, gen, page{
			status:      rec.Status(),
			contentType: rec.Header().Get("Content-Type"),
			body:        append([]byte(nil), rec.buf.Bytes()...),
		})
	}
}

// NoStoreKey, set to true on a gin context, keeps the response out of the
// page cache.
const NoStoreKey = "cache.no_store"

func (p *Pages) get(path, variant string) (page, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pg, ok := p.pages[path][variant]
	if !ok {
		return page{}, false
	}
	if !pg.expires.IsZero() && p.now().After(pg.expires) {
		delete(p.pages[path], variant)
		return page{}, false
	}
	return pg, true
}

func (p *Pages) generation(path string) uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.epoch + p.gen[path]
}

func (p *Pages) put(path, variant string, gen uint64, pg page) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.epoch+p.gen[path] != gen {
		return
	}
	if p.ttl > 0 {
		pg.expires = p.now().Add(p.ttl)
	}
	m, ok := p.pages[path]
	if !ok {
		m = make(map[string]page)
		p.pages[path] = m
	}
	m[variant] = pg
}

// InvalidatePath drops every cached variant of path.
func (p *Pages) InvalidatePath(_ context.Context, path string) error {
	p.mu.Lock()
	delete(p.pages, path)
	p.gen[path]++
	p.mu.Unlock()
	return nil
}

// InvalidateAll drops every cached page, including responses still being
// rendered.
func (p *Pages) InvalidateAll(_ context.Context) error {
	p.mu.Lock()
	clear(p.pages)
	p.epoch++
	p.mu.Unlock()
	return nil
}

// Cached reports whether any variant of path is cached.
func (p *Pages) Cached(path string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pages[path]) > 0
}
