package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/matchahq/matcha-backend/internal/types"
)

type ErrorBody struct {
	Message string         `json:"message"`
	Code    string         `json:"code,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
}

type ErrorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// RespondError maps an APIError to its envelope; anything else becomes an
// opaque 500 so internal detail never leaks to clients.
func RespondError(c *gin.Context, err error) {
	if apiErr, ok := types.AsAPIError(err); ok {
		c.JSON(apiErr.Status, ErrorEnvelope{
			Error: ErrorBody{
				Message: apiErr.Message,
				Code:    apiErr.Code,
				Meta:    apiErr.Meta,
			},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{
		Error: ErrorBody{
			Message: "internal server error",
			Code:    "INTERNAL_ERROR",
		},
	})
}

func RespondValidationError(c *gin.Context, msg string) {
	RespondError(c, types.ErrValidation(msg))
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}
