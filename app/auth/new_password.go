package auth

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/metrics"
	"bitwise74/storefront-api/pkg/validators"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type newPasswordBody struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func NewPassword(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data newPasswordBody
	_ = c.ShouldBindJSON(&data)

	if data.Token == "" {
		data.Token = c.Query("token")
	}

	if data.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Missing token!",
			"requestID": requestID,
		})
		return
	}

	if err := validators.PasswordValidator(data.Password); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	token := store.GetPasswordResetTokenByToken(d.DB, data.Token)
	if token == nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid token!",
			"requestID": requestID,
		})
		return
	}

	if time.Now().After(token.Expires) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Token has expired!",
			"requestID": requestID,
		})
		return
	}

	user := store.GetUserByEmail(d.DB, token.Email)
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Email does not exist!",
			"requestID": requestID,
		})
		return
	}

	hash, err := d.Argon.GenerateFromPassword(data.Password)
	if err != nil {
		internal.ServerError(c, "Failed to hash password", err)
		return
	}

	err = d.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.User{}).
			Where("id = ?", user.ID).
			Update("password_hash", hash).Error; err != nil {
			return err
		}

		return tx.Delete(&model.PasswordResetToken{}, token.ID).Error
	})
	if err != nil {
		internal.ServerError(c, "Failed to update password", err)
		return
	}

	d.Users.Forget(user.ID)
	metrics.AuthEvent(metrics.EventPasswordUpdated)

	c.JSON(http.StatusOK, gin.H{
		"success": "Password updated!",
	})
}
