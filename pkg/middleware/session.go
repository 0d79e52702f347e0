package middleware

import (
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/pkg/security"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const LoggedInCookie = "logged_in"

// UserSource resolves the user a session belongs to. nil means it's gone.
type UserSource interface {
	Get(id string) *model.User
}

// NewSessionMiddleware reads the auth_token cookie and, when it holds a
// valid session for an existing user, stores the user as "user" and the
// claims as "session". Requests without a session pass through untouched.
func NewSessionMiddleware(sm *security.SessionManager, users UserSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, err := c.Cookie(security.SessionCookie)
		if err != nil || tokenStr == "" {
			c.Next()
			return
		}

		claims, err := sm.Parse(tokenStr)
		if err != nil {
			zap.L().Debug("Dropping invalid session", zap.Error(err), zap.String("requestID", c.GetString("requestID")))
			ClearSessionCookies(c)
			c.Next()
			return
		}

		// The account may have been deleted while the cookie was still valid
		user := users.Get(claims.UserID())
		if user == nil {
			ClearSessionCookies(c)
			c.Next()
			return
		}

		c.Set("session", claims)
		c.Set("user", user)
		c.Set("userID", user.ID)
		c.Next()
	}
}

func CurrentUser(c *gin.Context) *model.User {
	u, ok := c.Get("user")
	if !ok {
		return nil
	}

	user, _ := u.(*model.User)
	return user
}

func CurrentSession(c *gin.Context) *security.SessionClaims {
	s, ok := c.Get("session")
	if !ok {
		return nil
	}

	claims, _ := s.(*security.SessionClaims)
	return claims
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Unauthorized",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Next()
	}
}

// RoleGate only lets users with the given role through
func RoleGate(role model.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || user.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":     "You do not have permission to view this content!",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Next()
	}
}

// SetSessionCookies stores a signed session. logged_in is readable by
// scripts so the client knows a session exists.
func SetSessionCookies(c *gin.Context, token string, ttl time.Duration) {
	secure := viper.GetBool("host.ssl.enabled")
	maxAge := int(ttl / time.Second)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(security.SessionCookie, token, maxAge, "/", "", secure, true)
	c.SetCookie(LoggedInCookie, "1", maxAge, "/", "", secure, false)
}

func ClearSessionCookies(c *gin.Context) {
	secure := viper.GetBool("host.ssl.enabled")

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(security.SessionCookie, "", -1, "/", "", secure, true)
	c.SetCookie(LoggedInCookie, "", -1, "/", "", secure, false)
}
