package category

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func CategoryImage(c *gin.Context, d *internal.Deps) {
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

	obj := d.ReceiveImage(c, "categories")
	if obj == nil {
		return
	}

	err = d.DB.Model(&model.Category{}).
		Where("id = ?", category.ID).
		Updates(map[string]any{
			"image_url": obj.URL,
			"image_key": obj.Key,
		}).Error
	if err != nil {
		if derr := d.Uploader.Delete(context.Background(), obj.Key); derr != nil {
			zap.L().Error("Failed to cleanup after failed image update", zap.Error(derr), zap.String("requestID", requestID))
		}

		internal.ServerError(c, "Failed to store category image", err)
		return
	}

	if err := d.Uploader.Delete(c.Request.Context(), category.ImageKey); err != nil {
		zap.L().Error("Failed to delete previous category image", zap.Error(err), zap.String("requestID", requestID))
	}

	invalidate(d)

	c.JSON(http.StatusOK, gin.H{
		"success":  "Image updated!",
		"imageUrl": obj.URL,
	})
}
