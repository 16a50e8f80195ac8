package handler

import (
	"net/http"
	"time"

	"procure/internal/middleware"
	"procure/internal/model"
	"procure/internal/service"
	"procure/pkg/response"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reportService service.ReportService
}

func NewReportHandler(reportService service.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/reports")
	group.Use(middleware.RequireRole(model.RoleFinance, model.RoleAdmin))
	{
		group.GET("/spending", h.GetSpendingReport)
	}
}

// GetSpendingReport handles GET /reports/spending
// @Summary      Spending report
// @Description  Aggregates request counts and approved spend over a date range (defaults to the last 90 days)
// @Tags         reports
// @Security     BearerAuth
// @Produce      json
// @Param        start_date  query     string  false  "Start date (YYYY-MM-DD)"
// @Param        end_date    query     string  false  "End date (YYYY-MM-DD)"
// @Success      200         {object}  response.Response{data=model.SpendingReport}
// @Failure      400         {object}  response.Response
// @Router       /reports/spending [get]
func (h *ReportHandler) GetSpendingReport(c *gin.Context) {
	end := time.Now()
	start := end.AddDate(0, 0, -90)

	if raw := c.Query("start_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid start_date, expected YYYY-MM-DD"))
			return
		}
		start = parsed
	}
	if raw := c.Query("end_date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid end_date, expected YYYY-MM-DD"))
			return
		}
		// include the whole end day
		end = parsed.Add(24*time.Hour - time.Second)
	}

	if end.Before(start) {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "end_date must not be before start_date"))
		return
	}

	report, err := h.reportService.SpendingReport(c.Request.Context(), start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, "Failed to build spending report: "+err.Error()))
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, report))
}
