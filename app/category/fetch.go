// Package category serves the storefront category tree
package category

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TreeCacheKey is the response cache entry of the full tree, dropped on
// every change. Single category pages expire on their own.
const TreeCacheKey = "/api/categories"

func loadAll(db *gorm.DB) ([]model.Category, error) {
	var all []model.Category
	err := db.Find(&all).Error
	return all, err
}

func invalidate(d *internal.Deps) {
	if d.Cache == nil {
		return
	}

	if err := d.Cache.Delete(TreeCacheKey); err != nil {
		zap.L().Warn("Failed to drop cached category tree", zap.Error(err))
	}
}

func CategoryTree(c *gin.Context, d *internal.Deps) {
	all, err := loadAll(d.DB)
	if err != nil {
		internal.ServerError(c, "Failed to fetch categories", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": service.BuildTree(all),
	})
}

func CategoryFetch(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	all, err := loadAll(d.DB)
	if err != nil {
		internal.ServerError(c, "Failed to fetch categories", err)
		return
	}

	node := service.FindNode(service.BuildTree(all), c.Param("slug"))
	if node == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Category not found",
			"requestID": requestID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category":   node,
		"breadcrumb": service.Breadcrumb(all, node.ID),
	})
}
