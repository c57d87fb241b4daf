package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/matchahq/matcha-backend/internal/requestdata"
	"github.com/matchahq/matcha-backend/internal/services"
)

type DashboardHandler struct {
	dashboardService services.DashboardService
}

func NewDashboardHandler(dashboardService services.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboardService: dashboardService}
}

func (h *DashboardHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	dashboard, err := h.dashboardService.GetDashboard(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, dashboard)
}
