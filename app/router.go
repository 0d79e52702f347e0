package app

import (
	"bitwise74/storefront-api/app/admin"
	"bitwise74/storefront-api/app/auth"
	"bitwise74/storefront-api/app/category"
	"bitwise74/storefront-api/app/root"
	"bitwise74/storefront-api/app/user"
	"bitwise74/storefront-api/db"
	"bitwise74/storefront-api/internal"
	rcache "bitwise74/storefront-api/internal/cache"
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/pkg/metrics"
	"bitwise74/storefront-api/pkg/middleware"
	"bitwise74/storefront-api/pkg/security"
	"bitwise74/storefront-api/storage"
	"context"
	"fmt"
	"net/http"
	"time"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	userCacheTTL      = 30 * time.Second
	categoryCacheTime = 30 * time.Second
)

// App is a fully wired server. Close releases the background workers.
type App struct {
	Router *gin.Engine
	Deps   *internal.Deps

	cron *cron.Cron
	done chan struct{}
}

// NewApp connects to every backing service configured through viper and
// starts the background workers
func NewApp(ctx context.Context) (*App, error) {
	conn, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}

	s, err := storage.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage, %w", err)
	}

	if s == nil {
		zap.L().Warn("Object storage disabled, image uploads will be rejected")
	}

	store, err := rcache.NewStore(ctx)
	if err != nil {
		return nil, err
	}

	d := &internal.Deps{
		DB:       conn,
		Argon:    security.New(),
		Sessions: security.NewSessionManager(viper.GetString("jwt.secret"), viper.GetDuration("jwt.ttl")),
		Mailer:   service.NewMailQueue(service.NewTransport()),
		Storage:  s,
		Uploader: service.NewUploader(s),
		Users:    rcache.NewUsers(conn, userCacheTTL),
		OAuth:    service.NewOAuth(),
		Routes:   middleware.DefaultRoutes(),
		Cache:    store,
	}

	// Check for useless tokens every day and for expired accounts rarely
	// because users get a week to verify
	c, err := service.NewScheduler(conn, d.Uploader)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule cleanup jobs, %w", err)
	}

	a := &App{
		Deps: d,
		cron: c,
		done: make(chan struct{}),
	}

	a.Router = NewRouter(d, a.done)

	d.Mailer.StartWorkerPool()
	c.Start()

	return a, nil
}

func (a *App) Close() {
	<-a.cron.Stop().Done()
	close(a.done)
	a.Deps.Mailer.Close()
	a.Deps.Users.Close()
}

// NewRouter mounts every route on a fresh engine. done stops the
// rate limiter's janitor.
func NewRouter(d *internal.Deps, done <-chan struct{}) *gin.Engine {
	router := gin.New()

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     viper.GetStringSlice("host.cors"),
			AllowMethods:     []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "TurnstileToken"},
			ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		ginzap.RecoveryWithZap(zap.L(), true),
		middleware.NewRequestIDMiddleware(),
		middleware.NewSessionMiddleware(d.Sessions, d.Users),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: time.RFC3339,
			UTC:        true,
			SkipPaths:  []string{"/metrics"},
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == http.MethodHead
			},
			Context: func(c *gin.Context) []zapcore.Field {
				return []zapcore.Field{
					zap.String("request_id", c.GetString("requestID")),
					zap.String("user_id", c.GetString("userID")),
				}
			},
		}),
		metrics.Middleware(),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true

	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	rateLimit := viper.GetInt("security.rate_limit")
	rateLimiter := middleware.RateLimiterMiddleware(middleware.RateLimiterConfig{
		RequestsPerSecond: rateLimit,
		Burst:             rateLimit * 2,
	}, done)

	routes := d.Routes
	routes.PublicRoutes = append(routes.PublicRoutes, "/api/heartbeat", "/api/routes/decide")
	guard := middleware.NewRouteGuard(routes)

	turnstile := middleware.NewTurnstileMiddleware()
	bodyLimit := middleware.BodySizeLimiter(64 << 10)
	uploadLimit := middleware.BodySizeLimiter(viper.GetInt64("upload.max_size") + 1<<20)
	adminOnly := middleware.RoleGate(model.RoleAdmin)

	m := router.Group("/api", rateLimiter, guard)
	{
		// HEAD /api/heartbeat			-> Used to check if the server is alive
		m.HEAD("/heartbeat", root.Heartbeat)

		// GET /api/routes/decide?path=		-> Tells a page renderer whether to redirect
		m.GET("/routes/decide", func(c *gin.Context) { root.RouteDecide(c, d) })
	}

	a := m.Group("/auth")
	{
		// POST /api/auth/register		-> Registers a new user and mails a confirmation link
		a.POST("/register", bodyLimit, turnstile, func(c *gin.Context) { auth.Register(c, d) })

		// POST /api/auth/login			-> Signs in with credentials and an optional 2FA code
		a.POST("/login", bodyLimit, turnstile, func(c *gin.Context) { auth.Login(c, d) })

		// POST /api/auth/logout		-> Clears the session
		a.POST("/logout", func(c *gin.Context) { auth.Logout(c, d) })

		// POST /api/auth/new-verification	-> Confirms an email address
		a.POST("/new-verification", bodyLimit, func(c *gin.Context) { auth.NewVerification(c, d) })

		// POST /api/auth/verification/resend	-> Mails a new confirmation link
		a.POST("/verification/resend", bodyLimit, turnstile, func(c *gin.Context) { auth.ResendVerification(c, d) })

		// POST /api/auth/reset			-> Mails a password reset link
		a.POST("/reset", bodyLimit, turnstile, func(c *gin.Context) { auth.Reset(c, d) })

		// POST /api/auth/new-password		-> Sets a new password using a reset token
		a.POST("/new-password", bodyLimit, func(c *gin.Context) { auth.NewPassword(c, d) })

		// GET /api/auth/oauth/:provider	-> Redirects to the provider
		a.GET("/oauth/:provider", func(c *gin.Context) { auth.OAuthStart(c, d) })

		// GET /api/auth/oauth/:provider/callback -> Finishes provider sign in
		a.GET("/oauth/:provider/callback", func(c *gin.Context) { auth.OAuthCallback(c, d) })
	}

	u := m.Group("/users", middleware.RequireAuth())
	{
		// GET /api/users/me			-> Returns the signed in user
		u.GET("/me", func(c *gin.Context) { user.UserFetch(c, d) })

		// PATCH /api/users/me			-> Updates settings
		u.PATCH("/me", bodyLimit, func(c *gin.Context) { user.UserSettings(c, d) })

		// PUT /api/users/me/avatar		-> Replaces the avatar
		u.PUT("/me/avatar", uploadLimit, func(c *gin.Context) { user.UserAvatar(c, d) })

		// DELETE /api/users/me			-> Deletes the account
		u.DELETE("/me", func(c *gin.Context) { user.UserDelete(c, d) })
	}

	ad := m.Group("/admin", middleware.RequireAuth())
	{
		// GET /api/admin			-> Only reachable by admins
		ad.GET("", adminOnly, admin.APIRoute)

		// POST /api/admin/action		-> Reports whether the caller may run admin actions
		ad.POST("/action", admin.ServerAction)

		// GET /api/admin/users			-> Paginated user list
		ad.GET("/users", adminOnly, func(c *gin.Context) { admin.UserList(c, d) })

		// PATCH /api/admin/users/:id/role	-> Changes a user's role
		ad.PATCH("/users/:id/role", adminOnly, bodyLimit, func(c *gin.Context) { admin.UserRole(c, d) })
	}

	cat := m.Group("/categories")
	{
		// GET /api/categories			-> Full category tree
		cat.GET("", cacheFor(d.Cache, categoryCacheTime), func(c *gin.Context) { category.CategoryTree(c, d) })

		// GET /api/categories/:slug		-> One category with children and breadcrumb
		cat.GET("/:slug", cacheFor(d.Cache, categoryCacheTime), func(c *gin.Context) { category.CategoryFetch(c, d) })

		// POST /api/categories			-> Creates a category
		cat.POST("", middleware.RequireAuth(), adminOnly, bodyLimit, func(c *gin.Context) { category.CategoryCreate(c, d) })

		// PATCH /api/categories/:id		-> Updates a category
		cat.PATCH("/:id", middleware.RequireAuth(), adminOnly, bodyLimit, func(c *gin.Context) { category.CategoryEdit(c, d) })

		// DELETE /api/categories/:id		-> Deletes a category, children move up
		cat.DELETE("/:id", middleware.RequireAuth(), adminOnly, func(c *gin.Context) { category.CategoryDelete(c, d) })

		// PUT /api/categories/:id/image	-> Replaces the category image
		cat.PUT("/:id/image", middleware.RequireAuth(), adminOnly, uploadLimit, func(c *gin.Context) { category.CategoryImage(c, d) })
	}

	return router
}

func cacheFor(store persist.CacheStore, d time.Duration) gin.HandlerFunc {
	if store == nil {
		store = persist.NewMemoryStore(time.Minute)
	}

	return cache.CacheByRequestURI(store, d)
}
