package cache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newPagesRouter(p *Pages, hits *int) *gin.Engine {
	r := gin.New()
	r.Use(p.Middleware())
	r.GET("/exercises/:code", func(c *gin.Context) {
		*hits++
		if c.Param("code") == "missing" {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		if c.Query("degraded") == "1" {
			c.Set(NoStoreKey, true)
		}
		c.JSON(http.StatusOK, gin.H{"code": c.Param("code"), "n": *hits})
	})
	r.POST("/exercises/:code", func(c *gin.Context) {
		*hits++
		c.Status(http.StatusNoContent)
	})
	return r
}

func get(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestPagesCachesSuccessfulGets(t *testing.T) {
	p := NewPages(0)
	var hits int
	r := newPagesRouter(p, &hits)

	first := get(r, http.MethodGet, "/exercises/S1-01")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "MISS", first.Header().Get("X-Cache"))

	second := get(r, http.MethodGet, "/exercises/S1-01")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Contains(t, second.Header().Get("Content-Type"), "application/json")
	assert.Equal(t, 1, hits)
	assert.True(t, p.Cached("/exercises/S1-01"))

	require.NoError(t, p.InvalidatePath(context.Background(), "/exercises/S1-01"))
	assert.False(t, p.Cached("/exercises/S1-01"))

	third := get(r, http.MethodGet, "/exercises/S1-01")
	assert.Equal(t, "MISS", third.Header().Get("X-Cache"))
	assert.Equal(t, 2, hits)
}

func TestPagesSkipsFailuresAndWrites(t *testing.T) {
	p := NewPages(0)
	var hits int
	r := newPagesRouter(p, &hits)

	get(r, http.MethodGet, "/exercises/missing")
	get(r, http.MethodGet, "/exercises/missing")
	assert.Equal(t, 2, hits)
	assert.False(t, p.Cached("/exercises/missing"))

	get(r, http.MethodPost, "/exercises/S1-01")
	get(r, http.MethodPost, "/exercises/S1-01")
	assert.Equal(t, 4, hits)

	get(r, http.MethodGet, "/exercises/S1-01?degraded=1")
	assert.False(t, p.Cached("/exercises/S1-01"))
}

func TestPagesInvalidatesAllVariants(t *testing.T) {
	p := NewPages(0)
	var hits int
	r := newPagesRouter(p, &hits)

	get(r, http.MethodGet, "/exercises/S1-01?lang=fr")
	get(r, http.MethodGet, "/exercises/S1-01")
	assert.Equal(t, "HIT", get(r, http.MethodGet, "/exercises/S1-01?lang=fr").Header().Get("X-Cache"))

	require.NoError(t, p.InvalidatePath(context.Background(), "/exercises/S1-01"))
	assert.Equal(t, "MISS", get(r, http.MethodGet, "/exercises/S1-01?lang=fr").Header().Get("X-Cache"))
}
