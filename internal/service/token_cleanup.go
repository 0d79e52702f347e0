package service

import (
	"bitwise74/storefront-api/internal/model"
	"time"

	"gorm.io/gorm"
)

// TokenCleanup removes every expired verification, reset and 2FA token and
// lifts resend blocks older than a day. It returns the number of removed
// tokens.
func TokenCleanup(db *gorm.DB, now time.Time) (int64, error) {
	var removed int64

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, table := range []any{
			&model.VerificationToken{},
			&model.PasswordResetToken{},
			&model.TwoFactorToken{},
		} {
			res := tx.Where("expires < ?", now).Delete(table)
			if res.Error != nil {
				return res.Error
			}

			removed += res.RowsAffected
		}

		return tx.Model(&model.ResendRequest{}).
			Where("last_resend < ?", now.Add(-24*time.Hour)).
			Updates(map[string]any{"count": 0, "blocked": false}).
			Error
	})

	return removed, err
}
