package internal

import (
	"bitwise74/storefront-api/internal/cache"
	"bitwise74/storefront-api/internal/service"
	"bitwise74/storefront-api/pkg/middleware"
	"bitwise74/storefront-api/pkg/security"
	"bitwise74/storefront-api/storage"

	"github.com/chenyahui/gin-cache/persist"
	"gorm.io/gorm"
)

type Deps struct {
	DB       *gorm.DB
	Argon    *security.ArgonHash
	Sessions *security.SessionManager
	Mailer   *service.MailQueue
	Storage  *storage.Client // nil when storage is disabled
	Uploader *service.Uploader
	Users    *cache.Users
	OAuth    *service.OAuth
	Routes   middleware.RouteConfig
	Cache    persist.CacheStore
}
