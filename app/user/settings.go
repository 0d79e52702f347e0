package user

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/middleware"
	"bitwise74/storefront-api/pkg/validators"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type settingsBody struct {
	Name               *string     `json:"name"`
	Email              *string     `json:"email"`
	Password           *string     `json:"password"`
	NewPassword        *string     `json:"newPassword"`
	Role               *model.Role `json:"role"`
	IsTwoFactorEnabled *bool       `json:"isTwoFactorEnabled"`
}

func UserSettings(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)
	user := middleware.CurrentUser(c)

	var data settingsBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid fields!",
			"requestID": requestID,
		})

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	// Provider accounts have no password and their email belongs to the provider
	if store.GetAccountByUserID(d.DB, user.ID) != nil {
		data.Email = nil
		data.Password = nil
		data.NewPassword = nil
		data.IsTwoFactorEnabled = nil
	}

	updates := map[string]any{}

	if data.Name != nil {
		if err := validators.NameValidator(*data.Name); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}

		updates["name"] = *data.Name
	}

	if data.Email != nil {
		email := validators.NormalizeEmail(*data.Email)

		if email != user.Email {
			changeEmail(c, d, user, email)
			return
		}
	}

	if data.Password != nil && data.NewPassword != nil {
		if user.PasswordHash == nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Incorrect password!",
				"requestID": requestID,
			})
			return
		}

		ok, err := d.Argon.VerifyPasswd(*data.Password, *user.PasswordHash)
		if err != nil {
			internal.ServerError(c, "Failed to verify password", err)
			return
		}

		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Incorrect password!",
				"requestID": requestID,
			})
			return
		}

		if err := validators.PasswordValidator(*data.NewPassword); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}

		hash, err := d.Argon.GenerateFromPassword(*data.NewPassword)
		if err != nil {
			internal.ServerError(c, "Failed to hash password", err)
			return
		}

		updates["password_hash"] = hash
	}

	if data.Role != nil && *data.Role != user.Role {
		// Only admins may change roles, otherwise anyone could promote themselves
		if !data.Role.Valid() || user.Role != model.RoleAdmin {
			c.JSON(http.StatusForbidden, gin.H{
				"error":     "You do not have permission to change roles!",
				"requestID": requestID,
			})
			return
		}

		updates["role"] = *data.Role
	}

	if data.IsTwoFactorEnabled != nil {
		updates["is_two_factor_enabled"] = *data.IsTwoFactorEnabled
	}

	if len(updates) > 0 {
		if err := d.DB.Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
			internal.ServerError(c, "Failed to update user settings", err)
			return
		}

		d.Users.Forget(user.ID)
	}

	updated := store.GetUserByID(d.DB, user.ID)
	if updated == nil {
		internal.ServerError(c, "Updated user vanished", nil)
		return
	}

	if err := d.StartSession(c, updated); err != nil {
		internal.ServerError(c, "Failed to issue session", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": "Settings Updated!",
		"user":    updated,
	})
}

// changeEmail mails a verification link to the new address. Nothing else in
// the request is applied until the address is confirmed.
func changeEmail(c *gin.Context, d *internal.Deps, user *model.User, email string) {
	requestID := c.GetString("requestID")

	if err := validators.EmailValidator(email); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     err.Error(),
			"requestID": requestID,
		})
		return
	}

	taken, err := store.EmailTaken(d.DB, email, user.ID)
	if err != nil {
		internal.ServerError(c, "Failed to check if email is taken", err)
		return
	}

	if taken {
		c.JSON(http.StatusConflict, gin.H{
			"error":     "Email already in use!",
			"requestID": requestID,
		})
		return
	}

	token, err := store.GenerateEmailChangeToken(d.DB, user.ID, email)
	if err != nil {
		internal.ServerError(c, "Failed to generate verification token", err)
		return
	}

	if err := d.SendMail(c, service.VerificationMail(email, token.Token)); err != nil {
		internal.ServerError(c, "Failed to send verification email", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": "Verification email sent!",
	})
}
