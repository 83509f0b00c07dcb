package director

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"event-director/internal/logger"
	apperrors "event-director/pkg/errors"
	"event-director/pkg/models"
)

type CacheInspector interface {
	Describe(ctx context.Context) (map[string][]string, error)
}

// Handler exposes the director over HTTP.
type Handler struct {
	service *Service
	warmup  *Warmup
	cache   CacheInspector
	logger  logger.Logger
}

func NewHandler(service *Service, warmup *Warmup, cache CacheInspector, log logger.Logger) *Handler {
	return &Handler{
		service: service,
		warmup:  warmup,
		cache:   cache,
		logger:  log,
	}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/execute", h.Execute)

	admin := r.Group("/admin/cache")
	admin.GET("", h.DescribeCache)
	admin.POST("/refresh", h.RefreshCache)
}

// Execute handles one transaction synchronously and returns the routing
// result.
func (h *Handler) Execute(c *gin.Context) {
	ctx := c.Request.Context()
	h.logger.InfowCtx(ctx, "Start - Handle execute request")
	defer h.logger.InfowCtx(ctx, "End - Handle execute request")

	body, err := c.GetRawData()
	if err != nil {
		h.respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidEnvelope))
		return
	}

	var env models.TransactionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.logger.ErrorwCtx(ctx, "Failed to parse execution request.", "error", err)
		h.respondError(c, apperrors.Wrap(err, apperrors.ErrInvalidEnvelope))
		return
	}

	result, err := h.service.HandleTransaction(ctx, &env)
	if err != nil {
		h.logger.ErrorwCtx(ctx, "Error while handling transaction.", "error", err)
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) RefreshCache(c *gin.Context) {
	stats, err := h.warmup.Reload(c.Request.Context(), TriggerManual)
	if err != nil {
		h.respondError(c, apperrors.Wrap(err, apperrors.ErrStoreUnavailable))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"documents": stats.Documents,
		"active":    stats.Active,
		"entries":   stats.Entries,
	})
}

func (h *Handler) DescribeCache(c *gin.Context) {
	keys, err := h.cache.Describe(c.Request.Context())
	if err != nil {
		h.respondError(c, apperrors.Wrap(err, apperrors.ErrInternal))
		return
	}
	c.JSON(http.StatusOK, gin.H{"tenants": keys})
}

func (h *Handler) respondError(c *gin.Context, err error) {
	c.JSON(apperrors.ToHTTPStatus(err), apperrors.ToErrorResponse(err))
}
