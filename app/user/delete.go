package user

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserDelete removes the signed in account with everything attached to it
func UserDelete(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	user := middleware.CurrentUser(c)

	if err := service.DeleteUsers(d.DB, []string{user.ID}, []string{user.Email}); err != nil {
		internal.ServerError(c, "Failed to delete user", err)
		return
	}

	if err := d.Uploader.Delete(c.Request.Context(), user.ImageKey); err != nil {
		zap.L().Error("Failed to delete user objects", zap.Error(err), zap.String("requestID", requestID))
	}

	d.Users.Forget(user.ID)
	middleware.ClearSessionCookies(c)

	c.JSON(http.StatusOK, gin.H{
		"success": "Account deleted!",
	})
}
