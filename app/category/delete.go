package category

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CategoryDelete removes a category. Its children move up to its parent.
func CategoryDelete(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var category model.Category
	err := d.DB.First(&category, "id = ?", c.Param("id")).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error":     "Category not found",
				"requestID": requestID,
			})
			return
		}

		internal.ServerError(c, "Failed to fetch category", err)
		return
	}

	err = d.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Category{}).
			Where("parent_id = ?", category.ID).
			Update("parent_id", category.ParentID).Error; err != nil {
			return err
		}

		return tx.Delete(&model.Category{}, "id = ?", category.ID).Error
	})
	if err != nil {
		internal.ServerError(c, "Failed to delete category", err)
		return
	}

	if err := d.Uploader.Delete(c.Request.Context(), category.ImageKey); err != nil {
		zap.L().Error("Failed to delete category image", zap.Error(err), zap.String("requestID", requestID))
	}

	invalidate(d)

	c.JSON(http.StatusOK, gin.H{
		"success": "Category deleted!",
	})
}
