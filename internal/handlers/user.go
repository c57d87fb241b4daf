package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/matchahq/matcha-backend/internal/requestdata"
	"github.com/matchahq/matcha-backend/internal/services"
)

type UserHandler struct {
	userService services.UserService
}

func NewUserHandler(userService services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

func (h *UserHandler) GetMe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	profile, err := h.userService.GetMe(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, profile)
}

type updateMeRequest struct {
	FirstName *string `json:"firstName"`
}

func (h *UserHandler) UpdateMe(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondValidationError(c, "invalid request body")
		return
	}
	profile, err := h.userService.UpdateFirstName(c.Request.Context(), rd.UserID, req.FirstName)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, profile)
}
