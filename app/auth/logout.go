package auth

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/pkg/metrics"
	"bitwise74/storefront-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

func Logout(c *gin.Context, d *internal.Deps) {
	if u := middleware.CurrentUser(c); u != nil {
		d.Users.Forget(u.ID)
	}

	middleware.ClearSessionCookies(c)
	metrics.AuthEvent(metrics.EventLogout)

	c.JSON(http.StatusOK, gin.H{
		"success": "Logged out!",
	})
}
