// Package admin exposes the guarded mutation API over the exercise catalog.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"exercisehub/internal/auth"
	"exercisehub/internal/cache"
	"exercisehub/internal/code"
	"exercisehub/internal/exercise"
	"exercisehub/internal/overrides"
	"exercisehub/pkg/models"
)

// Store is the part of the override store the admin surface reads directly.
type Store interface {
	List(ctx context.Context) ([]models.StoredOverride, error)
	Stats(ctx context.Context) (overrides.Stats, error)
	Ping(ctx context.Context) error
}

type Revalidator interface {
	Revalidate(ctx context.Context, tag string) error
}

type Handler struct {
	Service     *exercise.Service
	Store       Store
	Guard       auth.Guard
	Revalidator Revalidator
	Logger      *zap.Logger
}

func NewHandler(svc *exercise.Service, store Store, guard auth.Guard, rv Revalidator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{Service: svc, Store: store, Guard: guard, Revalidator: rv, Logger: logger.Named("admin")}
}

// RegisterRoutes mounts the admin API on rg. Only /status is reachable
// without a token.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/status", h.status) // GET /admin/status

	protected := rg.Group("", auth.AdminMiddleware(h.Guard))
	protected.GET("/exercises", h.list)           // GET /admin/exercises
	protected.POST("/exercises", h.create)        // POST /admin/exercises
	protected.PUT("/exercises/:code", h.override) // PUT /admin/exercises/:code
	protected.POST("/revalidate", h.revalidate)   // POST /admin/revalidate
}

type adminItem struct {
	exercise.Sheet
	OverrideUpdatedAt *time.Time `json:"override_updated_at,omitempty"`
}

func (h *Handler) list(c *gin.Context) {
	ctx := c.Request.Context()

	items, err := h.Service.ListAll(ctx)
	if err != nil {
		h.writeError(c, err)
		return
	}

	updated := map[string]time.Time{}
	storeErr := ""
	if stored, err := h.Store.List(ctx); err != nil {
		storeErr = err.Error()
	} else {
		for _, o := range stored {
			updated[o.Code] = o.UpdatedAt
		}
	}

	out := make([]adminItem, 0, len(items))
	for _, sh := range items {
		it := adminItem{Sheet: sh}
		if t, ok := updated[sh.Code]; ok {
			it.OverrideUpdatedAt = &t
		}
		out = append(out, it)
	}

	resp := gin.H{"total": len(out), "items": out}
	if storeErr != "" {
		resp["kv_error"] = storeErr
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) create(c *gin.Context) {
	var rec models.ExerciseRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	sh, err := h.Service.Create(c.Request.Context(), rec)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sh)
}

func (h *Handler) override(c *gin.Context) {
	var patch models.Override
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	sh, err := h.Service.SetOverride(c.Request.Context(), c.Param("code"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sh)
}

type revalidateReq struct {
	Tag string `json:"tag"`
}

func (h *Handler) revalidate(c *gin.Context) {
	var req revalidateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	switch req.Tag {
	case cache.TagExercises, cache.TagEditorial:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown tag"})
		return
	}

	if err := h.Revalidator.Revalidate(c.Request.Context(), req.Tag); err != nil {
		h.Logger.Error("revalidate failed", zap.String("tag", req.Tag), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "revalidate failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"revalidated": req.Tag})
}

func (h *Handler) status(c *gin.Context) {
	ctx := c.Request.Context()

	resp := gin.H{
		"kv_healthy":       true,
		"admin_configured": h.Guard.Configured(),
		"override_count":   0,
		"custom_count":     0,
		"last_override_at": nil,
	}

	if err := h.Store.Ping(ctx); err != nil {
		resp["kv_healthy"] = false
		resp["kv_error"] = err.Error()
		c.JSON(http.StatusOK, resp)
		return
	}

	st, err := h.Store.Stats(ctx)
	if err != nil {
		resp["kv_healthy"] = false
		resp["kv_error"] = err.Error()
		c.JSON(http.StatusOK, resp)
		return
	}
	resp["override_count"] = st.Overrides
	resp["custom_count"] = st.Customs
	if st.LastUpdated != nil {
		resp["last_override_at"] = st.LastUpdated.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var conflict *exercise.ConflictError
	switch {
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": conflict.Error(), "reason": conflict.Reason})
	case errors.Is(err, code.ErrInvalidCode):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid code"})
	case errors.Is(err, exercise.ErrInvalidRecord):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, exercise.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, overrides.ErrStoreUnavailable):
		h.Logger.Error("store unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store unavailable"})
	default:
		h.Logger.Error("admin request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "request failed"})
	}
}
