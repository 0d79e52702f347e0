// Package auth contains the credential, verification and OAuth handlers
// mounted under /api/auth
package auth

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/metrics"
	"bitwise74/storefront-api/pkg/validators"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

const (
	charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	// unverified credential accounts are cleaned up after this
	unverifiedTTL = 7 * 24 * time.Hour
)

type registerBody struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func Register(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data registerBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid fields!",
			"requestID": requestID,
		})

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	data.Email = validators.NormalizeEmail(data.Email)

	for _, err := range []error{
		validators.NameValidator(data.Name),
		validators.EmailValidator(data.Email),
		validators.PasswordValidator(data.Password),
	} {
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}
	}

	if store.GetUserByEmail(d.DB, data.Email) != nil {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Email already in use!",
			"requestID": requestID,
		})
		return
	}

	hash, err := d.Argon.GenerateFromPassword(data.Password)
	if err != nil {
		internal.ServerError(c, "Failed to hash password", err)
		return
	}

	userID, err := gonanoid.Generate(charset, 16)
	if err != nil {
		internal.ServerError(c, "Failed to generate user ID", err)
		return
	}

	expiry := time.Now().Add(unverifiedTTL)

	if err := d.DB.Create(&model.User{
		ID:           userID,
		Name:         data.Name,
		Email:        data.Email,
		PasswordHash: &hash,
		Role:         model.RoleUser,
		ExpiresAt:    &expiry,
	}).Error; err != nil {
		internal.ServerError(c, "Failed to create user", err)
		return
	}

	token, err := store.GenerateVerificationToken(d.DB, data.Email)
	if err != nil {
		internal.ServerError(c, "Failed to generate verification token", err)
		return
	}

	if err := d.SendMail(c, service.VerificationMail(data.Email, token.Token)); err != nil {
		internal.ServerError(c, "Failed to send verification email", err)
		return
	}

	metrics.AuthEvent(metrics.EventRegister)

	c.JSON(http.StatusOK, gin.H{
		"success": "Confirmation email sent!",
	})
}
