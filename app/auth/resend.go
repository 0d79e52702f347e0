package auth

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/validators"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const (
	resendCooldown = 60 * time.Second
	// resends allowed per day before the user is blocked until the next cleanup
	maxDailyResends = 5
)

type emailBody struct {
	Email string `json:"email"`
}

// ResendVerification mails a new verification link to an unverified user
func ResendVerification(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	var data emailBody
	if err := c.ShouldBindJSON(&data); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Invalid fields!",
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

	user := store.GetUserByEmail(d.DB, data.Email)
	if user == nil || user.PasswordHash == nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Email does not exist!",
			"requestID": requestID,
		})
		return
	}

	if user.EmailVerified != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":     "Email already verified!",
			"requestID": requestID,
		})
		return
	}

	now := time.Now()

	wait, err := reserveResend(d.DB, user.ID, now)
	if err != nil {
		if errors.Is(err, errResendBlocked) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":     "Too many requests, try again tomorrow",
				"requestID": requestID,
			})
			return
		}

		internal.ServerError(c, "Failed to update resend request", err)
		return
	}

	if wait > 0 {
		seconds := int(math.Ceil(wait.Seconds()))

		c.Header("Retry-After", strconv.Itoa(seconds))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      "Please wait before requesting another email",
			"retryAfter": seconds,
			"requestID":  requestID,
		})
		return
	}

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
}

var errResendBlocked = errors.New("resend blocked")

// reserveResend records a resend for userID. A positive duration means the
// cooldown is still running and nothing was recorded.
func reserveResend(db *gorm.DB, userID string, now time.Time) (time.Duration, error) {
	var wait time.Duration

	err := db.Transaction(func(tx *gorm.DB) error {
		var r model.ResendRequest

		err := tx.Where("user_id = ?", userID).First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(&model.ResendRequest{
				UserID:     userID,
				LastResend: now,
				Cooldown:   now.Add(resendCooldown),
				Count:      1,
			}).Error
		}
		if err != nil {
			return err
		}

		if r.Blocked {
			return errResendBlocked
		}

		if now.Before(r.Cooldown) {
			wait = r.Cooldown.Sub(now)
			return nil
		}

		r.Count++
		r.LastResend = now
		r.Cooldown = now.Add(resendCooldown)
		r.Blocked = r.Count >= maxDailyResends

		return tx.Save(&r).Error
	})

	return wait, err
}
