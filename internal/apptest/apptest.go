// Package apptest builds handler dependencies backed by an in-memory
// database and a recording mail transport
package apptest

import (
	"bitwise74/storefront-api/config"
	"bitwise74/storefront-api/internal"
	"bitwise74/storefront-api/internal/cache"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/internal/testutil"
	"bitwise74/storefront-api/pkg/middleware"
	"bitwise74/storefront-api/pkg/security"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-gonic/gin"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
)

const Password = "hunter22"

// Outbox records every delivered message
type Outbox struct {
	mu   sync.Mutex
	sent []service.Mail
}

func (o *Outbox) Deliver(m service.Mail) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.sent = append(o.sent, m)
	return nil
}

func (o *Outbox) Sent() []service.Mail {
	o.mu.Lock()
	defer o.mu.Unlock()

	return append([]service.Mail(nil), o.sent...)
}

func (o *Outbox) Last() (service.Mail, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(o.sent) == 0 {
		return service.Mail{}, false
	}

	return o.sent[len(o.sent)-1], true
}

// NewDeps returns dependencies with storage and OAuth disabled
func NewDeps(t *testing.T) (*internal.Deps, *Outbox) {
	t.Helper()

	gin.SetMode(gin.TestMode)

	viper.Reset()
	config.SetDefaults()
	viper.Set("mail.queue_size", 16)
	viper.Set("upload.max_size", 5<<20)
	t.Cleanup(viper.Reset)

	conn := testutil.NewDB(t)
	outbox := &Outbox{}

	argon := security.New()
	argon.Memory = 1024
	argon.Iterations = 1

	mailer := service.NewMailQueue(outbox)
	mailer.StartWorkerPool()
	t.Cleanup(mailer.Close)

	users := cache.NewUsers(conn, time.Minute)
	t.Cleanup(func() { users.Close() })

	d := &internal.Deps{
		DB:       conn,
		Argon:    argon,
		Sessions: security.NewSessionManager("test-secret", time.Hour),
		Mailer:   mailer,
		Users:    users,
		OAuth:    service.NewOAuth(),
		Routes:   middleware.DefaultRoutes(),
		Cache:    persist.NewMemoryStore(time.Minute),
	}

	return d, outbox
}

// Engine returns a router with the request id and session middlewares
func Engine(d *internal.Deps) *gin.Engine {
	e := gin.New()
	e.Use(middleware.NewRequestIDMiddleware(), middleware.NewSessionMiddleware(d.Sessions, d.Users))
	return e
}

type UserOpt func(*model.User)

func Unverified(u *model.User) {
	u.EmailVerified = nil
	exp := time.Now().Add(time.Hour)
	u.ExpiresAt = &exp
}

func Admin(u *model.User) { u.Role = model.RoleAdmin }

func TwoFactor(u *model.User) { u.IsTwoFactorEnabled = true }

// NoPassword makes the user look like one created through OAuth
func NoPassword(u *model.User) { u.PasswordHash = nil }

// CreateUser inserts a verified user whose password is Password
func CreateUser(t *testing.T, d *internal.Deps, email string, opts ...UserOpt) *model.User {
	t.Helper()

	hash, err := d.Argon.GenerateFromPassword(Password)
	require.NoError(t, err)

	now := time.Now()
	u := &model.User{
		ID:            gonanoid.Must(16),
		Name:          "Test User",
		Email:         email,
		PasswordHash:  &hash,
		Role:          model.RoleUser,
		EmailVerified: &now,
	}

	for _, opt := range opts {
		opt(u)
	}

	require.NoError(t, d.DB.Create(u).Error)
	return u
}

// SessionCookie signs a session for u
func SessionCookie(t *testing.T, d *internal.Deps, u *model.User) *http.Cookie {
	t.Helper()

	token, err := d.Sessions.Issue(u, false)
	require.NoError(t, err)

	return &http.Cookie{Name: security.SessionCookie, Value: token}
}

// Do sends body as JSON unless it is nil
func Do(e http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for _, c := range cookies {
		req.AddCookie(c)
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

// Decode unmarshals a JSON response into a map
func Decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
