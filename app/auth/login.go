package auth

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/metrics"
	"bitwise74/storefront-api/pkg/validators"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errNoConfirmation = errors.New("missing two factor confirmation")

type loginBody struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Code        string `json:"code"`
	CallbackURL string `json:"callbackUrl"`
}

func Login(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data loginBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid fields!",
			"requestID": requestID,
		})

		zap.L().Debug("Can't bind request body", zap.Error(err), zap.String("requestID", requestID))
		return
	}

	data.Email = validators.NormalizeEmail(data.Email)
	data.Code = strings.TrimSpace(data.Code)

	for _, err := range []error{
		validators.EmailValidator(data.Email),
		validators.LoginPasswordValidator(data.Password),
		validators.CodeValidator(data.Code),
	} {
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     err.Error(),
				"requestID": requestID,
			})
			return
		}
	}

	user := store.GetUserByEmail(d.DB, data.Email)
	if user == nil || user.PasswordHash == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Email does not exist!",
			"requestID": requestID,
		})
		return
	}

	// Checked before anything is mailed so strangers can't trigger mail
	ok, err := d.Argon.VerifyPasswd(data.Password, *user.PasswordHash)
	if err != nil {
		internal.ServerError(c, "Failed to verify password", err)
		return
	}

	if !ok {
		metrics.AuthEvent(metrics.EventLoginFailed)

		c.JSON(http.StatusUnauthorized, gin.H{
			"error":     "Invalid credentials!",
			"requestID": requestID,
		})
		return
	}

	if user.EmailVerified == nil {
		token, err := store.GenerateVerificationToken(d.DB, user.Email)
		if err != nil {
			internal.ServerError(c, "Failed to generate verification token", err)
			return
		}

		if err := d.SendMail(c, service.VerificationMail(user.Email, token.Token)); err != nil {
			internal.ServerError(c, "Failed to send verification email", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"success": "Confirmation email sent!",
		})
		return
	}

	if user.IsTwoFactorEnabled {
		if data.Code == "" {
			token, err := store.GenerateTwoFactorToken(d.DB, user.Email)
			if err != nil {
				internal.ServerError(c, "Failed to generate two factor token", err)
				return
			}

			if err := d.SendMail(c, service.TwoFactorMail(user.Email, token.Token)); err != nil {
				internal.ServerError(c, "Failed to send two factor email", err)
				return
			}

			metrics.AuthEvent(metrics.EventTwoFactorSent)

			c.JSON(http.StatusOK, gin.H{
				"twoFactor": true,
			})
			return
		}

		token := store.GetTwoFactorTokenByEmail(d.DB, user.Email)
		if token == nil || token.Token != data.Code {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Invalid code!",
				"requestID": requestID,
			})
			return
		}

		if time.Now().After(token.Expires) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":     "Code expired!",
				"requestID": requestID,
			})
			return
		}

		if err := confirmTwoFactor(d.DB, user.ID, token); err != nil {
			internal.ServerError(c, "Failed to confirm two factor code", err)
			return
		}

		// The confirmation only ever covers the sign-in right after it
		if err := consumeTwoFactorConfirmation(d.DB, user.ID); err != nil {
			if errors.Is(err, errNoConfirmation) {
				c.JSON(http.StatusUnauthorized, gin.H{
					"error":     "Invalid code!",
					"requestID": requestID,
				})
				return
			}

			internal.ServerError(c, "Failed to consume two factor confirmation", err)
			return
		}
	}

	if err := d.StartSession(c, user); err != nil {
		internal.ServerError(c, "Failed to issue session", err)
		return
	}

	metrics.AuthEvent(metrics.EventLogin)

	c.JSON(http.StatusOK, gin.H{
		"success":  "Logged in!",
		"userID":   user.ID,
		"role":     user.Role,
		"redirect": redirectTarget(data.CallbackURL, d.Routes.DefaultLoginRedirect),
	})
}

// confirmTwoFactor swaps the used code for a fresh confirmation
func confirmTwoFactor(db *gorm.DB, userID string, token *model.TwoFactorToken) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&model.TwoFactorToken{}, token.ID).Error; err != nil {
			return err
		}

		if err := tx.Where("user_id = ?", userID).Delete(&model.TwoFactorConfirmation{}).Error; err != nil {
			return err
		}

		return tx.Create(&model.TwoFactorConfirmation{UserID: userID}).Error
	})
}

func consumeTwoFactorConfirmation(db *gorm.DB, userID string) error {
	res := db.Where("user_id = ?", userID).Delete(&model.TwoFactorConfirmation{})
	if res.Error != nil {
		return res.Error
	}

	if res.RowsAffected == 0 {
		return errNoConfirmation
	}

	return nil
}

// redirectTarget only follows local paths so the callback can't be used as
// an open redirect
func redirectTarget(callback, fallback string) string {
	if strings.HasPrefix(callback, "/") && !strings.HasPrefix(callback, "//") && !strings.Contains(callback, `\`) {
		return callback
	}

	return fallback
}
