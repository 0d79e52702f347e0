package auth

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/metrics"
	"bitwise74/storefront-api/pkg/security"
	"bitwise74/storefront-api/pkg/util"
	"bitwise74/storefront-api/pkg/validators"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	stateCookie = "oauth_state"
	stateTTL    = 10 * time.Minute
	errorPage   = "/auth/error"
)

// OAuthStart sends the browser to the provider's consent page
func OAuthStart(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	p, err := d.OAuth.Provider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error":     "Unknown provider",
			"requestID": requestID,
		})
		return
	}

	nonce, err := util.GenerateToken(16)
	if err != nil {
		internal.ServerError(c, "Failed to generate oauth state", err)
		return
	}

	state := security.SignState(nonce, viper.GetString("oauth.state_secret"))

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookie, state, int(stateTTL/time.Second), "/api/auth/oauth", "", viper.GetBool("host.ssl.enabled"), true)
	c.Redirect(http.StatusFound, p.AuthCodeURL(state))
}

// OAuthCallback finishes the provider flow. Failures land on the error page
// since the user arrives here through a browser redirect.
func OAuthCallback(c *gin.Context, d *internal.Deps) {
	requestID := c.MustGet("requestID").(string)

	fail := func(code string, err error) {
		if err != nil {
			zap.L().Error("OAuth sign in failed", zap.Error(err), zap.String("requestID", requestID))
		}

		c.Redirect(http.StatusFound, errorPage+"?error="+url.QueryEscape(code))
	}

	name := c.Param("provider")

	p, err := d.OAuth.Provider(name)
	if err != nil {
		fail("OAuthSignin", nil)
		return
	}

	if e := c.Query("error"); e != "" {
		fail("OAuthCallback", nil)
		return
	}

	cookieState, _ := c.Cookie(stateCookie)
	c.SetCookie(stateCookie, "", -1, "/api/auth/oauth", "", viper.GetBool("host.ssl.enabled"), true)

	state := c.Query("state")
	if state == "" || state != cookieState {
		fail("OAuthCallback", errors.New("state mismatch"))
		return
	}

	if _, ok := security.VerifySignedState(state, viper.GetString("oauth.state_secret")); !ok {
		fail("OAuthCallback", errors.New("state signature invalid"))
		return
	}

	profile, err := p.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		fail("OAuthCallback", err)
		return
	}

	user, err := linkOAuthUser(d.DB, name, profile)
	if err != nil {
		fail("OAuthAccountNotLinked", err)
		return
	}

	d.Users.Forget(user.ID)

	if err := d.StartSession(c, user); err != nil {
		fail("Callback", err)
		return
	}

	metrics.AuthEvent(metrics.EventOAuthLogin)

	c.Redirect(http.StatusFound, d.Routes.DefaultLoginRedirect)
}

// linkOAuthUser finds the user behind a provider identity. Unknown
// identities are linked to the user with the same email or to a new user.
// Linking marks the email as verified and drops the password of a user that
// never verified it.
func linkOAuthUser(db *gorm.DB, provider string, profile *service.OAuthProfile) (*model.User, error) {
	if acc := store.GetAccountByProvider(db, provider, profile.ProviderAccountID); acc != nil {
		user := store.GetUserByID(db, acc.UserID)
		if user == nil {
			return nil, errors.New("linked account has no user")
		}

		return user, nil
	}

	email := validators.NormalizeEmail(profile.Email)
	now := time.Now()

	var user *model.User

	err := db.Transaction(func(tx *gorm.DB) error {
		user = store.GetUserByEmail(tx, email)

		if user == nil {
			id, err := gonanoid.Generate(charset, 16)
			if err != nil {
				return err
			}

			user = &model.User{
				ID:            id,
				Name:          profile.Name,
				Email:         email,
				Image:         profile.Image,
				Role:          model.RoleUser,
				EmailVerified: &now,
			}

			if err := tx.Create(user).Error; err != nil {
				return err
			}
		} else if user.EmailVerified == nil || user.ExpiresAt != nil {
			updates := map[string]any{
				"email_verified": now,
				"expires_at":     nil,
			}

			// Nobody proved owning the address before, so a password set
			// during registration can't survive the link
			if user.EmailVerified == nil {
				updates["password_hash"] = nil
			}

			if err := tx.Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
				return err
			}

			if user.EmailVerified == nil {
				user.PasswordHash = nil
			}

			user.EmailVerified = &now
			user.ExpiresAt = nil
		}

		return tx.Create(&model.Account{
			UserID:            user.ID,
			Provider:          provider,
			ProviderAccountID: profile.ProviderAccountID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}
