package handler

import (
	"net/http"

	"procure/internal/middleware"
	"procure/internal/model"
	"procure/internal/service"
	"procure/pkg/pagination"
	"procure/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/audit-logs")
	group.Use(middleware.RequireRole(model.RoleAdmin, model.RoleFinance)) // Protect history logs
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs retrieves strictly paginated records with Users pre-loaded joining details
// @Summary      Get audit logs
// @Description  Retrieves list of audit logs securely mapping User interaction history
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        page    query     int     false  "Page number (default 1)"
// @Param        limit   query     int     false  "Number of items per page (default 20)"
// @Param        action  query     string  false  "Filter by action"
// @Success      200     {object}  response.Response{data=object}
// @Router       /audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	params := pagination.Parse(c)
	action := c.Query("action")

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), action, params.Page, params.Limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to retrieve audit logs: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, map[string]interface{}{
		"logs":   logs,
		"total":  total,
		"page":   params.Page,
		"limit":  params.Limit,
		"action": action,
	}))
}
