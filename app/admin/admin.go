// Package admin contains routes reserved for the ADMIN role
package admin

import (
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

// APIRoute is mounted behind RoleGate so reaching it means the caller is an admin
func APIRoute(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": "Allowed API Route!",
	})
}

// ServerAction does its own role check and reports a refusal in the body
func ServerAction(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user == nil || user.Role != model.RoleAdmin {
		c.JSON(http.StatusForbidden, gin.H{
			"error":     "Forbidden Server Action!",
			"requestID": c.GetString("requestID"),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": "Allowed Server Action!",
	})
}
