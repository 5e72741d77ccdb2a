package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/drivetest-backend/internal/response"
	"github.com/stemsi/drivetest-backend/internal/service"
)

// DashboardHandler serves the admin overview.
type DashboardHandler struct {
	dashboardService *service.DashboardService
}

// NewDashboardHandler creates a new DashboardHandler.
func NewDashboardHandler(dashboardService *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

// Overview godoc
// GET /api/v1/admin/dashboard
func (h *DashboardHandler) Overview(c *gin.Context) {
	// Live session counts change every second.
	c.Header("Cache-Control", "no-store")

	data, err := h.dashboardService.GetDashboardData(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, data)
}
