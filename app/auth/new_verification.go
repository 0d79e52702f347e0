package auth

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/metrics"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var errEmailTaken = errors.New("email taken")

type tokenBody struct {
	Token string `json:"token"`
}

// NewVerification confirms an email address. It handles both new accounts
// and existing users moving to a new address.
func NewVerification(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data tokenBody
	_ = c.ShouldBindJSON(&data)

	if data.Token == "" {
		data.Token = c.Query("token")
	}

	token := store.GetVerificationTokenByToken(d.DB, data.Token)
	if token == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Token does not exist!",
			"requestID": requestID,
		})
		return
	}

	now := time.Now()
	if now.After(token.Expires) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Token has expired!",
			"requestID": requestID,
		})
		return
	}

	var user *model.User
	if token.UserID != "" {
		user = store.GetUserByID(d.DB, token.UserID)
	} else {
		user = store.GetUserByEmail(d.DB, token.Email)
	}

	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Email does not exist!",
			"requestID": requestID,
		})
		return
	}

	err := d.DB.Transaction(func(tx *gorm.DB) error {
		// The address may have been claimed since the token was sent
		taken, err := store.EmailTaken(tx, token.Email, user.ID)
		if err != nil {
			return err
		}

		if taken {
			return errEmailTaken
		}

		if err := tx.Model(&model.User{}).
			Where("id = ?", user.ID).
			Updates(map[string]any{
				"email_verified": now,
				"email":          token.Email,
				"expires_at":     nil,
			}).Error; err != nil {
			return err
		}

		return tx.Delete(&model.VerificationToken{}, token.ID).Error
	})
	if errors.Is(err, errEmailTaken) {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Email already in use!",
			"requestID": requestID,
		})
		return
	}

	if err != nil {
		internal.ServerError(c, "Failed to update user and token in transaction", err)
		return
	}

	d.Users.Forget(user.ID)
	metrics.AuthEvent(metrics.EventEmailVerified)

	c.JSON(http.StatusOK, gin.H{
		"success": "Email verified!",
	})
}
