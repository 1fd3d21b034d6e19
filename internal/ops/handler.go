package ops

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthflow/internal/constants"
	"healthflow/internal/logger"
	"healthflow/internal/processing"
	"healthflow/pkg/errors"
	"healthflow/pkg/health"
)

// Handler exposes the operational read-only surface: health, metrics, and
// the backlog of processing records that never reached a terminal status.
type Handler struct {
	repo           processing.Repository
	healthRegistry *health.CheckerRegistry
	logger         logger.Logger
}

func NewHandler(repo processing.Repository, registry *health.CheckerRegistry, log logger.Logger) *Handler {
	return &Handler{
		repo:           repo,
		healthRegistry: registry,
		logger:         log,
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		proc := v1.Group("/processing")
		{
			proc.GET("/pending", h.GetPendingEvents)
			proc.GET("/pending/count", h.GetPendingCount)
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	result := h.healthRegistry.Check(c.Request.Context())
	statusCode := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, result)
}

func (h *Handler) GetPendingEvents(c *gin.Context) {
	limit := parseLimit(c.Query("limit"))

	events, err := h.repo.GetPendingEvents(c.Request.Context(), int64(limit))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *Handler) GetPendingCount(c *gin.Context) {
	count, err := h.repo.GetPendingCount(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func parseLimit(limitStr string) int {
	if limitStr == "" {
		return constants.DefaultPendingLimit
	}
	parsed, err := strconv.Atoi(limitStr)
	if err != nil || parsed <= 0 || parsed > constants.MaxPendingLimit {
		return constants.DefaultPendingLimit
	}
	return parsed
}
