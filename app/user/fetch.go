// Package user contains the handlers behind the settings page
package user

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/middleware"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserFetch returns the signed in user
func UserFetch(c *gin.Context, d *internal.Deps) {
	user := middleware.CurrentUser(c)

	c.JSON(http.StatusOK, gin.H{
		"user":    user,
		"isOAuth": store.GetAccountByUserID(d.DB, user.ID) != nil,
	})
}
