package cache

import (
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/internal/store"
	"errors"
	"time"

	"github.com/jellydator/ttlcache/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Users keeps recently loaded session users so every authenticated request
// doesn't hit the database. Handlers that change a user must call Forget.
type Users struct {
	db    *gorm.DB
	cache *ttlcache.Cache
}

func NewUsers(db *gorm.DB, ttl time.Duration) *Users {
	c := ttlcache.NewCache()
	c.SetTTL(ttl)
	c.SkipTTLExtensionOnHit(true)

	return &Users{db: db, cache: c}
}

// Get returns nil if the user doesn't exist
func (u *Users) Get(id string) *model.User {
	v, err := u.cache.Get(id)
	if err == nil {
		user := v.(model.User)
		return &user
	}

	if !errors.Is(err, ttlcache.ErrNotFound) {
		zap.L().Warn("User cache lookup failed", zap.Error(err))
	}

	user := store.GetUserByID(u.db, id)
	if user == nil {
		return nil
	}

	// store a copy so callers can't mutate the cached value
	if err := u.cache.Set(id, *user); err != nil {
		zap.L().Warn("Failed to cache user", zap.Error(err))
	}

	return user
}

func (u *Users) Forget(id string) {
	err := u.cache.Remove(id)
	if err != nil && !errors.Is(err, ttlcache.ErrNotFound) {
		zap.L().Warn("Failed to evict user from cache", zap.Error(err))
	}
}

func (u *Users) Close() error {
	return u.cache.Close()
}
