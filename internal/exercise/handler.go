package exercise

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"exercisehub/internal/cache"
	"exercisehub/internal/code"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/", h.home)                   // GET /
	rg.GET("/exercises", h.list)          // GET /exercises
	rg.GET("/exercises/:code", h.get)     // GET /exercises/:code
	rg.GET("/series/:series", h.bySeries) // GET /series/:series
}

type seriesSummary struct {
	Series int    `json:"series"`
	Name   string `json:"name"`
	Count  int    `json:"count"`
}

func (h *Handler) home(c *gin.Context) {
	all, err := h.Service.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	counts := map[string]int{}
	degraded := false
	for _, sh := range all {
		counts[sh.Series]++
		degraded = degraded || sh.Degraded
	}
	series := make([]seriesSummary, 0, code.MaxSeries)
	for n := code.MinSeries; n <= code.MaxSeries; n++ {
		name := code.SeriesDir(n)
		series = append(series, seriesSummary{Series: n, Name: name, Count: counts[name]})
	}

	if degraded {
		c.Set(cache.NoStoreKey, true)
	}
	c.JSON(http.StatusOK, gin.H{
		"total":    len(all),
		"series":   series,
		"degraded": degraded,
	})
}

func (h *Handler) list(c *gin.Context) {
	all, err := h.Service.ListAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	limit := parseInt(c.Query("limit"), 50)
	offset := parseInt(c.Query("offset"), 0)
	q := strings.ToLower(strings.TrimSpace(c.Query("q")))

	filtered := all[:0]
	for _, sh := range all {
		if q != "" && !strings.Contains(strings.ToLower(sh.Title), q) && !strings.Contains(strings.ToLower(sh.Code), q) {
			continue
		}
		if sh.Degraded {
			c.Set(cache.NoStoreKey, true)
		}
		filtered = append(filtered, sh)
	}

	c.JSON(http.StatusOK, gin.H{
		"total":  len(filtered),
		"limit":  limit,
		"offset": offset,
		"items":  page(filtered, limit, offset),
	})
}

func (h *Handler) get(c *gin.Context) {
	raw := c.Param("code")
	n := code.Normalize(raw)
	if !code.IsValid(n) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if n != raw {
		c.Redirect(http.StatusMovedPermanently, "/exercises/"+n)
		return
	}

	sh, err := h.Service.Resolve(c.Request.Context(), n)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if sh.Degraded {
		c.Set(cache.NoStoreKey, true)
	}
	c.JSON(http.StatusOK, sh)
}

func (h *Handler) bySeries(c *gin.Context) {
	raw := c.Param("series")
	n, ok := code.ParseSeries(raw)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if canonical := strconv.Itoa(n); canonical != raw {
		c.Redirect(http.StatusMovedPermanently, fmt.Sprintf("/series/%d", n))
		return
	}

	items, err := h.Service.ListSeries(c.Request.Context(), n)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	for _, sh := range items {
		if sh.Degraded {
			c.Set(cache.NoStoreKey, true)
			break
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"series": n,
		"name":   code.SeriesDir(n),
		"total":  len(items),
		"items":  items,
	})
}

func page(items []Sheet, limit, offset int) []Sheet {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []Sheet{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
