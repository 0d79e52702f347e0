package user

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/pkg/middleware"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func UserAvatar(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	user := middleware.CurrentUser(c)

	obj := d.ReceiveImage(c, "avatars")
	if obj == nil {
		return
	}

	err := d.DB.Model(&model.User{}).
		Where("id = ?", user.ID).
		Updates(map[string]any{
			"image":     obj.URL,
			"image_key": obj.Key,
		}).Error
	if err != nil {
		if derr := d.Uploader.Delete(context.Background(), obj.Key); derr != nil {
			zap.L().Error("Failed to cleanup after failed avatar update", zap.Error(derr), zap.String("requestID", requestID))
		}

		internal.ServerError(c, "Failed to store avatar", err)
		return
	}

	if user.ImageKey != "" {
		if err := d.Uploader.Delete(c.Request.Context(), user.ImageKey); err != nil {
			zap.L().Error("Failed to delete previous avatar", zap.Error(err), zap.String("requestID", requestID))
		}
	}

	d.Users.Forget(user.ID)

	c.JSON(http.StatusOK, gin.H{
		"success": "Avatar updated!",
		"image":   obj.URL,
	})
}
