// Package store contains the small lookups shared by handlers. Like the
// handlers they talk to gorm directly; lookups return nil when a row is
// missing or the query failed, the failure itself is logged.
package store

import (
	"bitwise74/storefront-api/internal/model"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

func first[T any](db *gorm.DB, what string, query string, args ...any) *T {
	var out T

	err := db.Where(query, args...).First(&out).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			zap.L().Error("Failed to fetch "+what, zap.Error(err))
		}
		return nil
	}

	return &out
}

func GetUserByEmail(db *gorm.DB, email string) *model.User {
	return first[model.User](db, "user by email", "email = ?", email)
}

func GetUserByID(db *gorm.DB, id string) *model.User {
	return first[model.User](db, "user by id", "id = ?", id)
}

func GetAccountByUserID(db *gorm.DB, userID string) *model.Account {
	return first[model.Account](db, "account by user id", "user_id = ?", userID)
}

func GetAccountByProvider(db *gorm.DB, provider, providerAccountID string) *model.Account {
	return first[model.Account](db, "account by provider", "provider = ? AND provider_account_id = ?", provider, providerAccountID)
}

func GetTwoFactorConfirmationByUserID(db *gorm.DB, userID string) *model.TwoFactorConfirmation {
	return first[model.TwoFactorConfirmation](db, "two factor confirmation", "user_id = ?", userID)
}

// EmailTaken reports whether an account other than exceptID uses email
func EmailTaken(db *gorm.DB, email, exceptID string) (bool, error) {
	var count int64

	err := db.Model(&model.User{}).
		Where("email = ? AND id <> ?", email, exceptID).
		Count(&count).
		Error
	if err != nil {
		return false, err
	}

	return count > 0, nil
}
