package internal

import (
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/pkg/validators"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ReceiveImage validates the multipart "file" field and uploads it below
// dir. On failure the response has already been written and nil is returned.
func (d *Deps) ReceiveImage(c *gin.Context, dir string) *service.UploadedObject {
	requestID := c.GetString("requestID")

	if d.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":     "File storage is disabled",
			"requestID": requestID,
		})
		return nil
	}

	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "No file provided",
			"requestID": requestID,
		})
		return nil
	}

	status, f, mime, err := validators.ImageValidator(fh)
	if err != nil {
		if status == http.StatusInternalServerError {
			ServerError(c, "Failed to validate image", err)
			return nil
		}

		c.JSON(status, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return nil
	}
	defer f.Close()

	obj, err := d.Uploader.Upload(c.Request.Context(), f, fh.Size, mime, dir)
	if err != nil {
		ServerError(c, "Failed to upload image", err)
		return nil
	}

	zap.L().Debug("Image received", zap.String("key", obj.Key), zap.String("requestID", requestID))

	return obj
}
