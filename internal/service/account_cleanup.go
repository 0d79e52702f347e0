package service

import (
	"bitwise74/storefront-api/internal/model"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AccountCleanup deletes credential accounts that were never verified before
// their expires_at, together with anything stored for them
func AccountCleanup(ctx context.Context, db *gorm.DB, u *Uploader, now time.Time) (int64, error) {
	var users []model.User

	err := db.
		Select("id", "email", "image_key").
		Where("expires_at < ? AND email_verified IS NULL", now).
		Find(&users).
		Error
	if err != nil {
		return 0, fmt.Errorf("failed to query db for users to clean, %w", err)
	}

	if len(users) == 0 {
		return 0, nil
	}

	ids := make([]string, len(users))
	emails := make([]string, len(users))
	keys := make([]string, 0, len(users))

	for i, user := range users {
		ids[i] = user.ID
		emails[i] = user.Email
		keys = append(keys, user.ImageKey)
	}

	if err := u.Delete(ctx, keys...); err != nil {
		zap.L().Error("Failed to delete user objects from storage", zap.Error(err))
	}

	if err := DeleteUsers(db, ids, emails); err != nil {
		return 0, fmt.Errorf("failed to delete users from database, %w", err)
	}

	return int64(len(ids)), nil
}

// DeleteUsers removes users and every row that belongs to them
func DeleteUsers(db *gorm.DB, ids, emails []string) error {
	return db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []any{
			&model.Account{},
			&model.TwoFactorConfirmation{},
			&model.ResendRequest{},
		} {
			if err := tx.Where("user_id IN ?", ids).Delete(table).Error; err != nil {
				return err
			}
		}

		for _, table := range []any{
			&model.VerificationToken{},
			&model.PasswordResetToken{},
			&model.TwoFactorToken{},
		} {
			if err := tx.Where("email IN ?", emails).Delete(table).Error; err != nil {
				return err
			}
		}

		return tx.Where("id IN ?", ids).Delete(&model.User{}).Error
	})
}
