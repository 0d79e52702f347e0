package middleware

import (
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/pkg/security"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsers map[string]*model.User

func (f fakeUsers) Get(id string) *model.User { return f[id] }

func sessionEngine(sm *security.SessionManager, users UserSource) *gin.Engine {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(NewRequestIDMiddleware(), NewSessionMiddleware(sm, users))

	e.GET("/whoami", func(c *gin.Context) {
		u := CurrentUser(c)
		if u == nil {
			c.JSON(http.StatusOK, gin.H{"user": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": u.ID, "oauth": CurrentSession(c).IsOAuth})
	})
	e.GET("/private", RequireAuth(), func(c *gin.Context) { c.Status(http.StatusOK) })
	e.GET("/admin", RequireAuth(), RoleGate(model.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	return e
}

func get(e *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: security.SessionCookie, Value: token})
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func TestSessionMiddleware(t *testing.T) {
	sm := security.NewSessionManager("secret", time.Hour)
	user := &model.User{ID: "u1", Email: "u@x.com", Role: model.RoleUser}
	admin := &model.User{ID: "a1", Email: "a@x.com", Role: model.RoleAdmin}
	e := sessionEngine(sm, fakeUsers{"u1": user, "a1": admin})

	userToken, err := sm.Issue(user, true)
	require.NoError(t, err)
	adminToken, err := sm.Issue(admin, false)
	require.NoError(t, err)

	w := get(e, "/whoami", userToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "u1", body["user"])
	assert.Equal(t, true, body["oauth"])

	assert.Equal(t, http.StatusUnauthorized, get(e, "/private", "").Code)
	assert.Equal(t, http.StatusOK, get(e, "/private", userToken).Code)

	w = get(e, "/admin", userToken)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "You do not have permission to view this content!")
	assert.Equal(t, http.StatusOK, get(e, "/admin", adminToken).Code)
}

func TestSessionMiddlewareDropsBadSessions(t *testing.T) {
	sm := security.NewSessionManager("secret", time.Hour)
	e := sessionEngine(sm, fakeUsers{})

	// signed for a user that no longer exists
	gone, err := sm.Issue(&model.User{ID: "gone"}, false)
	require.NoError(t, err)

	for _, token := range []string{"garbage", gone} {
		w := get(e, "/private", token)
		assert.Equal(t, http.StatusUnauthorized, w.Code)

		var cleared bool
		for _, c := range w.Result().Cookies() {
			if c.Name == security.SessionCookie && c.MaxAge < 0 {
				cleared = true
			}
		}
		assert.True(t, cleared, "session cookie should be cleared")
	}
}

func TestSetSessionCookies(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	SetSessionCookies(c, "tok", time.Hour)

	cookies := map[string]*http.Cookie{}
	for _, ck := range w.Result().Cookies() {
		cookies[ck.Name] = ck
	}

	require.Contains(t, cookies, security.SessionCookie)
	assert.True(t, cookies[security.SessionCookie].HttpOnly)
	assert.Equal(t, 3600, cookies[security.SessionCookie].MaxAge)
	require.Contains(t, cookies, LoggedInCookie)
	assert.False(t, cookies[LoggedInCookie].HttpOnly)
}
