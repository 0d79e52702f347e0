package middleware

import (
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
)

// RouteConfig lists which paths are reachable without a session and which
// ones only make sense without one
type RouteConfig struct {
	// PublicRoutes are matched exactly. PublicPrefixes cover whole subtrees.
	PublicRoutes   []string
	PublicPrefixes []string
	// AuthRoutes send signed in users to DefaultLoginRedirect
	AuthRoutes []string
	// Everything under APIAuthPrefix is always reachable
	APIAuthPrefix        string
	DefaultLoginRedirect string
	LoginRoute           string
}

func DefaultRoutes() RouteConfig {
	return RouteConfig{
		PublicRoutes: []string{
			"/",
			"/new-verification",
			"/categories",
			"/api/categories",
		},
		PublicPrefixes: []string{
			"/categories/",
			"/api/categories/",
		},
		AuthRoutes: []string{
			"/auth/login",
			"/auth/register",
			"/auth/error",
			"/auth/reset",
			"/auth/new-password",
		},
		APIAuthPrefix:        "/api/auth",
		DefaultLoginRedirect: viper.GetString("routes.default_login_redirect"),
		LoginRoute:           viper.GetString("routes.login"),
	}
}

type Action string

const (
	ActionAllow    Action = "allow"
	ActionRedirect Action = "redirect"
)

type Decision struct {
	Action   Action `json:"action"`
	Location string `json:"location,omitempty"`
}

func (r RouteConfig) isPublic(path string) bool {
	if slices.Contains(r.PublicRoutes, path) {
		return true
	}

	for _, p := range r.PublicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}

// Decide tells whether a request for target (path plus optional query)
// may continue
func (r RouteConfig) Decide(target string, loggedIn bool) Decision {
	path, query, _ := strings.Cut(target, "?")
	if path == "" {
		path = "/"
	}

	if r.APIAuthPrefix != "" && strings.HasPrefix(path, r.APIAuthPrefix) {
		return Decision{Action: ActionAllow}
	}

	if slices.Contains(r.AuthRoutes, path) {
		if loggedIn {
			return Decision{Action: ActionRedirect, Location: r.DefaultLoginRedirect}
		}

		return Decision{Action: ActionAllow}
	}

	if !loggedIn && !r.isPublic(path) {
		callback := path
		if query != "" {
			callback += "?" + query
		}

		return Decision{
			Action:   ActionRedirect,
			Location: r.LoginRoute + "?callbackUrl=" + url.QueryEscape(callback),
		}
	}

	return Decision{Action: ActionAllow}
}

// NewRouteGuard applies Decide to every request. API requests get a 401
// instead of a redirect since clients can't follow it into a page.
func NewRouteGuard(r RouteConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := r.Decide(c.Request.URL.RequestURI(), CurrentUser(c) != nil)
		if d.Action == ActionAllow {
			c.Next()
			return
		}

		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":     "Unauthorized",
				"requestID": c.GetString("requestID"),
			})
			return
		}

		c.Redirect(http.StatusFound, d.Location)
		c.Abort()
	}
}
