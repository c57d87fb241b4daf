package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/matchahq/matcha-backend/internal/services"
)

// GetPlans is public; the table is static so there is nothing to inject.
func GetPlans(c *gin.Context) {
	RespondOK(c, gin.H{"plans": services.Plans()})
}
