package root

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/pkg/middleware"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RouteDecide lets a page renderer ask whether the current visitor may open
// path or should be redirected
func RouteDecide(c *gin.Context, d *internal.Deps) {
	path := c.Query("path")
	if !strings.HasPrefix(path, "/") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "path must be an absolute path",
			"requestID": c.GetString("requestID"),
		})
		return
	}

	c.JSON(http.StatusOK, d.Routes.Decide(path, middleware.CurrentUser(c) != nil))
}
