package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/venuelane/service-reservation/internal/application"
	"github.com/venuelane/service-reservation/internal/platform/auth"
	"github.com/venuelane/service-reservation/internal/platform/middleware"
	"github.com/venuelane/service-reservation/internal/platform/response"
)

// AdminHandler handles the admin surface: dashboard stats and dead retry job
// remediation.
type AdminHandler struct {
	service *application.ReservationService
	jwt     *auth.JWTManager
	logger  *zap.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(service *application.ReservationService, jwt *auth.JWTManager, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{service: service, jwt: jwt, logger: logger}
}

// RegisterRoutes registers the admin routes.
func (h *AdminHandler) RegisterRoutes(api *gin.RouterGroup) {
	admin := api.Group("/admin",
		middleware.AuthMiddleware(h.jwt),
		middleware.RequireRole(auth.RoleAdmin))
	{
		admin.GET("/stats", h.Stats)
		admin.GET("/retry-jobs/dead", h.ListDeadJobs)
		admin.POST("/retry-jobs/:id/requeue", h.RequeueJob)
	}
}

// Stats returns booking counts by status.
func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.service.GetStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, stats)
}

// ListDeadJobs returns retry jobs that exhausted their attempts.
func (h *AdminHandler) ListDeadJobs(c *gin.Context) {
	page := intQuery(c, "page", 1)
	limit := intQuery(c, "limit", 20)

	result, err := h.service.ListDeadJobs(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// RequeueJob resets a dead retry job to pending.
func (h *AdminHandler) RequeueJob(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	j, err := h.service.RequeueDeadJob(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, j)
}
