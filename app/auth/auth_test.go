package auth

import (
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/apptest"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/internal/store"
	"bitwise74/storefront-api/pkg/security"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
)

func authEngine(d *internal.Deps) *gin.Engine {
	e := apptest.Engine(d)
	e.POST("/register", func(c *gin.Context) { Register(c, d) })
	e.POST("/login", func(c *gin.Context) { Login(c, d) })
	e.POST("/logout", func(c *gin.Context) { Logout(c, d) })
	e.POST("/new-verification", func(c *gin.Context) { NewVerification(c, d) })
	e.POST("/resend", func(c *gin.Context) { ResendVerification(c, d) })
	e.POST("/reset", func(c *gin.Context) { Reset(c, d) })
	e.POST("/new-password", func(c *gin.Context) { NewPassword(c, d) })
	e.GET("/oauth/:provider", func(c *gin.Context) { OAuthStart(c, d) })
	e.GET("/oauth/:provider/callback", func(c *gin.Context) { OAuthCallback(c, d) })
	return e
}

func sessionCookie(w interface{ Result() *http.Response }) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == security.SessionCookie {
			return c
		}
	}

	return nil
}

func TestRegister(t *testing.T) {
	d, outbox := apptest.NewDeps(t)
	e := authEngine(d)

	w := apptest.Do(e, http.MethodPost, "/register", gin.H{
		"name":     "Jane",
		"email":    " Jane@Example.com ",
		"password": "secret1",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Confirmation email sent!", apptest.Decode(t, w)["success"])

	user := store.GetUserByEmail(d.DB, "jane@example.com")
	require.NotNil(t, user)
	assert.Nil(t, user.EmailVerified)
	assert.NotNil(t, user.ExpiresAt)
	assert.Equal(t, model.RoleUser, user.Role)
	assert.NotEqual(t, "secret1", *user.PasswordHash)

	token := store.GetVerificationTokenByEmail(d.DB, "jane@example.com")
	require.NotNil(t, token)

	mail, ok := outbox.Last()
	require.True(t, ok)
	assert.Equal(t, "jane@example.com", mail.To)
	assert.Contains(t, mail.Body, token.Token)
}

func TestRegisterRejects(t *testing.T) {
	d, outbox := apptest.NewDeps(t)
	e := authEngine(d)
	apptest.CreateUser(t, d, "taken@example.com")

	cases := []struct {
		name string
		body gin.H
		code int
		err  string
	}{
		{"missing name", gin.H{"email": "a@example.com", "password": "secret1"}, http.StatusBadRequest, "Name is required"},
		{"bad email", gin.H{"name": "A", "email": "nope", "password": "secret1"}, http.StatusBadRequest, "Invalid email address"},
		{"short password", gin.H{"name": "A", "email": "a@example.com", "password": "123"}, http.StatusBadRequest, "Minimum 6 characters required"},
		{"taken email", gin.H{"name": "A", "email": "taken@example.com", "password": "secret1"}, http.StatusConflict, "Email already in use!"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := apptest.Do(e, http.MethodPost, "/register", tc.body)
			assert.Equal(t, tc.code, w.Code)
			assert.Equal(t, tc.err, apptest.Decode(t, w)["error"])
		})
	}

	assert.Empty(t, outbox.Sent())
}

func TestLoginSuccessSetsSession(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "user@example.com")

	w := apptest.Do(e, http.MethodPost, "/login", gin.H{
		"email":       "user@example.com",
		"password":    apptest.Password,
		"callbackUrl": "/orders?page=2",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := apptest.Decode(t, w)
	assert.Equal(t, "Logged in!", body["success"])
	assert.Equal(t, u.ID, body["userID"])
	assert.Equal(t, "/orders?page=2", body["redirect"])

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)

	claims, err := d.Sessions.Parse(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID())
	assert.False(t, claims.IsOAuth)
}

func TestLoginWrongPasswordSendsNothing(t *testing.T) {
	d, outbox := apptest.NewDeps(t)
	e := authEngine(d)
	apptest.CreateUser(t, d, "user@example.com", apptest.Unverified)

	w := apptest.Do(e, http.MethodPost, "/login", gin.H{"email": "user@example.com", "password": "wrong-one"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid credentials!", apptest.Decode(t, w)["error"])
	assert.Empty(t, outbox.Sent())
	assert.Nil(t, sessionCookie(w))

	w = apptest.Do(e, http.MethodPost, "/login", gin.H{"email": "ghost@example.com", "password": "whatever"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Email does not exist!", apptest.Decode(t, w)["error"])
}

func TestLoginOAuthOnlyUser(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	apptest.CreateUser(t, d, "oauth@example.com", apptest.NoPassword)

	w := apptest.Do(e, http.MethodPost, "/login", gin.H{"email": "oauth@example.com", "password": "whatever"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLoginUnverifiedResendsConfirmation(t *testing.T) {
	d, outbox := apptest.NewDeps(t)
	e := authEngine(d)
	apptest.CreateUser(t, d, "new@example.com", apptest.Unverified)

	w := apptest.Do(e, http.MethodPost, "/login", gin.H{"email": "new@example.com", "password": apptest.Password})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Confirmation email sent!", apptest.Decode(t, w)["success"])
	assert.Nil(t, sessionCookie(w))

	mail, ok := outbox.Last()
	require.True(t, ok)
	assert.Equal(t, "Confirm your email", mail.Subject)
	assert.NotNil(t, store.GetVerificationTokenByEmail(d.DB, "new@example.com"))
}

func TestLoginTwoFactorFlow(t *testing.T) {
	d, outbox := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "2fa@example.com", apptest.TwoFactor)

	creds := gin.H{"email": "2fa@example.com", "password": apptest.Password}

	w := apptest.Do(e, http.MethodPost, "/login", creds)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, apptest.Decode(t, w)["twoFactor"])
	assert.Nil(t, sessionCookie(w))

	mail, ok := outbox.Last()
	require.True(t, ok)
	assert.Equal(t, "2FA Code", mail.Subject)

	token := store.GetTwoFactorTokenByEmail(d.DB, u.Email)
	require.NotNil(t, token)
	assert.Contains(t, mail.Body, token.Token)

	wrong := "000000"
	if token.Token == wrong {
		wrong = "111111"
	}

	w = apptest.Do(e, http.MethodPost, "/login", gin.H{"email": u.Email, "password": apptest.Password, "code": wrong})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid code!", apptest.Decode(t, w)["error"])

	w = apptest.Do(e, http.MethodPost, "/login", gin.H{"email": u.Email, "password": apptest.Password, "code": token.Token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, sessionCookie(w))

	// both the code and the confirmation are single use
	assert.Nil(t, store.GetTwoFactorTokenByEmail(d.DB, u.Email))
	assert.Nil(t, store.GetTwoFactorConfirmationByUserID(d.DB, u.ID))
}

func TestLoginTwoFactorExpiredCode(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "2fa@example.com", apptest.TwoFactor)

	require.NoError(t, d.DB.Create(&model.TwoFactorToken{
		Email:   u.Email,
		Token:   "123456",
		Expires: time.Now().Add(-time.Minute),
	}).Error)

	w := apptest.Do(e, http.MethodPost, "/login", gin.H{"email": u.Email, "password": apptest.Password, "code": "123456"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Code expired!", apptest.Decode(t, w)["error"])
}

func TestRedirectTarget(t *testing.T) {
	assert.Equal(t, "/orders", redirectTarget("/orders", "/settings"))
	assert.Equal(t, "/settings", redirectTarget("", "/settings"))
	assert.Equal(t, "/settings", redirectTarget("https://evil.example", "/settings"))
	assert.Equal(t, "/settings", redirectTarget("//evil.example", "/settings"))
	assert.Equal(t, "/settings", redirectTarget(`/\evil.example`, "/settings"))
}

func TestLogoutClearsCookies(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "user@example.com")

	w := apptest.Do(e, http.MethodPost, "/logout", nil, apptest.SessionCookie(t, d, u))
	require.Equal(t, http.StatusOK, w.Code)

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
	assert.True(t, cookie.MaxAge < 0)
}

func TestNewVerification(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "new@example.com", apptest.Unverified)

	token, err := store.GenerateVerificationToken(d.DB, u.Email)
	require.NoError(t, err)

	w := apptest.Do(e, http.MethodPost, "/new-verification", gin.H{"token": "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Token does not exist!", apptest.Decode(t, w)["error"])

	w = apptest.Do(e, http.MethodPost, "/new-verification?token="+token.Token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Email verified!", apptest.Decode(t, w)["success"])

	got := store.GetUserByID(d.DB, u.ID)
	require.NotNil(t, got)
	assert.NotNil(t, got.EmailVerified)
	assert.Nil(t, got.ExpiresAt)
	assert.Nil(t, store.GetVerificationTokenByToken(d.DB, token.Token))
}

func TestNewVerificationExpired(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "new@example.com", apptest.Unverified)

	require.NoError(t, d.DB.Create(&model.VerificationToken{
		Email:   u.Email,
		Token:   "old-token",
		Expires: time.Now().Add(-time.Minute),
	}).Error)

	w := apptest.Do(e, http.MethodPost, "/new-verification", gin.H{"token": "old-token"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Token has expired!", apptest.Decode(t, w)["error"])
}

func TestNewVerificationChangesEmail(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "old@example.com")

	token, err := store.GenerateEmailChangeToken(d.DB, u.ID, "new@example.com")
	require.NoError(t, err)

	w := apptest.Do(e, http.MethodPost, "/new-verification", gin.H{"token": token.Token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	got := store.GetUserByID(d.DB, u.ID)
	require.NotNil(t, got)
	assert.Equal(t, "new@example.com", got.Email)
	assert.Nil(t, store.GetUserByEmail(d.DB, "old@example.com"))
}

func TestResendVerificationCooldown(t *testing.T) {
	d, outbox := apptest.NewDeps(t)
	e := authEngine(d)
	apptest.CreateUser(t, d, "new@example.com", apptest.Unverified)
	apptest.CreateUser(t, d, "done@example.com")

	w := apptest.Do(e, http.MethodPost, "/resend", gin.H{"email": "new@example.com"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, outbox.Sent(), 1)

	w = apptest.Do(e, http.MethodPost, "/resend", gin.H{"email": "new@example.com"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Len(t, outbox.Sent(), 1)

	w = apptest.Do(e, http.MethodPost, "/resend", gin.H{"email": "done@example.com"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email already verified!", apptest.Decode(t, w)["error"])

	w = apptest.Do(e, http.MethodPost, "/resend", gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReserveResendBlocksAfterDailyLimit(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	u := apptest.CreateUser(t, d, "new@example.com", apptest.Unverified)

	now := time.Now()
	for i := range maxDailyResends {
		wait, err := reserveResend(d.DB, u.ID, now.Add(time.Duration(i)*2*resendCooldown))
		require.NoError(t, err)
		require.Zero(t, wait)
	}

	_, err := reserveResend(d.DB, u.ID, now.Add(time.Duration(maxDailyResends)*2*resendCooldown))
	assert.ErrorIs(t, err, errResendBlocked)

	var r model.ResendRequest
	require.NoError(t, d.DB.Where("user_id = ?", u.ID).First(&r).Error)
	assert.True(t, r.Blocked)
	assert.Equal(t, maxDailyResends, r.Count)
}

func TestResetAndNewPassword(t *testing.T) {
	d, outbox := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "user@example.com")

	w := apptest.Do(e, http.MethodPost, "/reset", gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Email not found!", apptest.Decode(t, w)["error"])

	w = apptest.Do(e, http.MethodPost, "/reset", gin.H{"email": u.Email})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Reset email sent!", apptest.Decode(t, w)["success"])

	token := store.GetPasswordResetTokenByEmail(d.DB, u.Email)
	require.NotNil(t, token)

	mail, ok := outbox.Last()
	require.True(t, ok)
	assert.Contains(t, mail.Body, "/new-password?token="+token.Token)

	w = apptest.Do(e, http.MethodPost, "/new-password", gin.H{"password": "brand-new"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing token!", apptest.Decode(t, w)["error"])

	w = apptest.Do(e, http.MethodPost, "/new-password", gin.H{"token": "nope", "password": "brand-new"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid token!", apptest.Decode(t, w)["error"])

	w = apptest.Do(e, http.MethodPost, "/new-password", gin.H{"token": token.Token, "password": "brand-new"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Password updated!", apptest.Decode(t, w)["success"])
	assert.Nil(t, store.GetPasswordResetTokenByToken(d.DB, token.Token))

	w = apptest.Do(e, http.MethodPost, "/login", gin.H{"email": u.Email, "password": "brand-new"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = apptest.Do(e, http.MethodPost, "/login", gin.H{"email": u.Email, "password": apptest.Password})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNewPasswordExpiredToken(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "user@example.com")

	require.NoError(t, d.DB.Create(&model.PasswordResetToken{
		Email:   u.Email,
		Token:   "stale",
		Expires: time.Now().Add(-time.Second),
	}).Error)

	w := apptest.Do(e, http.MethodPost, "/new-password", gin.H{"token": "stale", "password": "brand-new"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Token has expired!", apptest.Decode(t, w)["error"])
}

func TestOAuthStartUnknownProvider(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)

	w := apptest.Do(e, http.MethodGet, "/oauth/myspace", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = apptest.Do(e, http.MethodGet, "/oauth/myspace/callback?code=x&state=y", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Location"), "/auth/error?error="))
}

func TestOAuthFlowLinksExistingUser(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "octo@example.com", apptest.Unverified)

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"at","token_type":"bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id":"42","email":"Octo@Example.com","name":"Octo"}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	d.OAuth.Register(&service.OAuthProvider{
		Name: "test",
		Config: &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			Endpoint: oauth2.Endpoint{
				AuthURL:   srv.URL + "/authorize",
				TokenURL:  srv.URL + "/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		UserInfoURL: srv.URL + "/user",
		Parse: func(body []byte) service.OAuthProfile {
			r := gjson.ParseBytes(body)
			return service.OAuthProfile{
				ProviderAccountID: r.Get("id").String(),
				Email:             r.Get("email").String(),
				Name:              r.Get("name").String(),
			}
		},
	})

	w := apptest.Do(e, http.MethodGet, "/oauth/test", nil)
	require.Equal(t, http.StatusFound, w.Code)

	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)

	var stateCookieValue *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == stateCookie {
			stateCookieValue = c
		}
	}
	require.NotNil(t, stateCookieValue)

	// a forged state is rejected
	w = apptest.Do(e, http.MethodGet, "/oauth/test/callback?code=c&state=forged.sig", nil, &http.Cookie{Name: stateCookie, Value: "forged.sig"})
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/auth/error?error=OAuthCallback", w.Header().Get("Location"))

	w = apptest.Do(e, http.MethodGet, "/oauth/test/callback?code=c&state="+url.QueryEscape(state), nil, stateCookieValue)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/settings", w.Header().Get("Location"))

	cookie := sessionCookie(w)
	require.NotNil(t, cookie)

	claims, err := d.Sessions.Parse(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID())
	assert.True(t, claims.IsOAuth)

	got := store.GetUserByID(d.DB, u.ID)
	require.NotNil(t, got)
	assert.NotNil(t, got.EmailVerified)
	assert.Nil(t, got.ExpiresAt)

	acc := store.GetAccountByProvider(d.DB, "test", "42")
	require.NotNil(t, acc)
	assert.Equal(t, u.ID, acc.UserID)
}

func TestLinkOAuthUserCreatesUser(t *testing.T) {
	d, _ := apptest.NewDeps(t)

	profile := &service.OAuthProfile{ProviderAccountID: "7", Email: "fresh@example.com", Name: "Fresh"}

	u, err := linkOAuthUser(d.DB, "github", profile)
	require.NoError(t, err)
	assert.Equal(t, "fresh@example.com", u.Email)
	assert.Nil(t, u.PasswordHash)
	assert.NotNil(t, u.EmailVerified)

	again, err := linkOAuthUser(d.DB, "github", profile)
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	var n int64
	require.NoError(t, d.DB.Model(&model.Account{}).Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestLinkOAuthUserDropsUnverifiedPassword(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	squatter := apptest.CreateUser(t, d, "victim@example.com", apptest.Unverified)

	profile := &service.OAuthProfile{ProviderAccountID: "9", Email: "victim@example.com"}
	u, err := linkOAuthUser(d.DB, "google", profile)
	require.NoError(t, err)
	assert.Equal(t, squatter.ID, u.ID)
	assert.Nil(t, u.PasswordHash)
	assert.NotNil(t, u.EmailVerified)

	got := store.GetUserByID(d.DB, u.ID)
	require.NotNil(t, got)
	assert.Nil(t, got.PasswordHash)

	// the password chosen before the address was proven no longer works
	w := apptest.Do(e, http.MethodPost, "/login", gin.H{"email": "victim@example.com", "password": apptest.Password})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLinkOAuthUserKeepsVerifiedPassword(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	owner := apptest.CreateUser(t, d, "owner@example.com")

	u, err := linkOAuthUser(d.DB, "google", &service.OAuthProfile{ProviderAccountID: "10", Email: "owner@example.com"})
	require.NoError(t, err)
	assert.Equal(t, owner.ID, u.ID)

	got := store.GetUserByID(d.DB, u.ID)
	require.NotNil(t, got)
	assert.NotNil(t, got.PasswordHash)
}

func TestNewVerificationEmailTakenMeanwhile(t *testing.T) {
	d, _ := apptest.NewDeps(t)
	e := authEngine(d)
	u := apptest.CreateUser(t, d, "a@example.com")

	token, err := store.GenerateEmailChangeToken(d.DB, u.ID, "b@example.com")
	require.NoError(t, err)

	apptest.CreateUser(t, d, "b@example.com")

	w := apptest.Do(e, http.MethodPost, "/new-verification", gin.H{"token": token.Token})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Email already in use!", apptest.Decode(t, w)["error"])

	got := store.GetUserByID(d.DB, u.ID)
	require.NotNil(t, got)
	assert.Equal(t, "a@example.com", got.Email)
}
