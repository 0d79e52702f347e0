package auth

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/metrics"
	"bitwise74/storefront-api/pkg/validators"
	"net/http"

	"github.com/gin-gonic/gin"
)

func Reset(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data emailBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid email!",
			"requestID": requestID,
		})
		return
	}

	data.Email = validators.NormalizeEmail(data.Email)
	if err := validators.EmailValidator(data.Email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	if store.GetUserByEmail(d.DB, data.Email) == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Email not found!",
			"requestID": requestID,
		})
		return
	}

	token, err := store.GeneratePasswordResetToken(d.DB, data.Email)
	if err != nil {
		internal.ServerError(c, "Failed to generate password reset token", err)
		return
	}

	if err := d.SendMail(c, service.PasswordResetMail(data.Email, token.Token)); err != nil {
		internal.ServerError(c, "Failed to send password reset email", err)
		return
	}

	metrics.AuthEvent(metrics.EventPasswordReset)

	c.JSON(http.StatusOK, gin.H{
		"success": "Reset email sent!",
	})
}
