package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	done := make(chan struct{})
	t.Cleanup(func() { close(done) })

	e := gin.New()
	e.Use(RateLimiterMiddleware(RateLimiterConfig{RequestsPerSecond: 1, Burst: 2}, done))
	e.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := []int{}
	for range 3 {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		e.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{200, 200, 429}, codes)

	// another client has its own bucket
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	e.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBodySizeLimiter(t *testing.T) {
	gin.SetMode(gin.TestMode)

	e := gin.New()
	e.Use(BodySizeLimiter(8))
	e.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("tiny")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("way too large body")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTurnstile(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Cleanup(viper.Reset)

	verify := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if strings.Contains(string(body), `"response":"good"`) {
			w.Write([]byte(`{"success":true}`))
			return
		}
		w.Write([]byte(`{"success":false,"error-codes":["invalid-input-response"]}`))
	}))
	t.Cleanup(verify.Close)

	old := turnstileVerifyURL
	turnstileVerifyURL = verify.URL
	t.Cleanup(func() { turnstileVerifyURL = old })

	e := gin.New()
	e.Use(NewTurnstileMiddleware())
	e.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if token != "" {
			req.Header.Set("TurnstileToken", token)
		}
		w := httptest.NewRecorder()
		e.ServeHTTP(w, req)
		return w.Code
	}

	viper.Set("cloudflare.turnstile.enabled", false)
	assert.Equal(t, http.StatusOK, send(""))

	viper.Set("cloudflare.turnstile.enabled", true)
	assert.Equal(t, http.StatusBadRequest, send(""))
	assert.Equal(t, http.StatusUnauthorized, send("bad"))
	assert.Equal(t, http.StatusOK, send("good"))
}
