package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/matchahq/matcha-backend/internal/requestdata"
	"github.com/matchahq/matcha-backend/internal/services"
)

const maxAnalysisInputLen = 10000

type AnalysisHandler struct {
	analysisService services.AnalysisService
}

func NewAnalysisHandler(analysisService services.AnalysisService) *AnalysisHandler {
	return &AnalysisHandler{analysisService: analysisService}
}

type createAnalysisRequest struct {
	InputText string `json:"inputText"`
}

func (h *AnalysisHandler) Create(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req createAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidationError(c, "invalid request body")
		return
	}
	if strings.TrimSpace(req.InputText) == "" {
		RespondValidationError(c, "inputText must not be empty")
		return
	}
	if len(req.InputText) > maxAnalysisInputLen {
		RespondValidationError(c, "inputText too long")
		return
	}
	analysis, err := h.analysisService.Create(c.Request.Context(), rd.UserID, rd.Tier, req.InputText)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, analysis)
}

func (h *AnalysisHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	page, limit := pageParams(c)
	result, err := h.analysisService.List(c.Request.Context(), rd.UserID, page, limit)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *AnalysisHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	analysis, err := h.analysisService.Get(c.Request.Context(), rd.UserID, id)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, analysis)
}
