package store

import (
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/pkg/security"
	"time"

	"gorm.io/gorm"
)

func GetVerificationTokenByToken(db *gorm.DB, token string) *model.VerificationToken {
	return first[model.VerificationToken](db, "verification token", "token = ?", token)
}

func GetVerificationTokenByEmail(db *gorm.DB, email string) *model.VerificationToken {
	return first[model.VerificationToken](db, "verification token", "email = ?", email)
}

func GetPasswordResetTokenByToken(db *gorm.DB, token string) *model.PasswordResetToken {
	return first[model.PasswordResetToken](db, "password reset token", "token = ?", token)
}

func GetPasswordResetTokenByEmail(db *gorm.DB, email string) *model.PasswordResetToken {
	return first[model.PasswordResetToken](db, "password reset token", "email = ?", email)
}

func GetTwoFactorTokenByToken(db *gorm.DB, token string) *model.TwoFactorToken {
	return first[model.TwoFactorToken](db, "two factor token", "token = ?", token)
}

func GetTwoFactorTokenByEmail(db *gorm.DB, email string) *model.TwoFactorToken {
	return first[model.TwoFactorToken](db, "two factor token", "email = ?", email)
}

// GenerateVerificationToken replaces whatever verification token email had with a new one
func GenerateVerificationToken(db *gorm.DB, email string) (*model.VerificationToken, error) {
	t, err := security.MakeVerificationToken(email, time.Now())
	if err != nil {
		return nil, err
	}

	return t, replace(db, &model.VerificationToken{}, email, t)
}

// GenerateEmailChangeToken issues a verification token for a new address of
// an existing user
func GenerateEmailChangeToken(db *gorm.DB, userID, email string) (*model.VerificationToken, error) {
	t, err := security.MakeVerificationToken(email, time.Now())
	if err != nil {
		return nil, err
	}
	t.UserID = userID

	return t, replace(db, &model.VerificationToken{}, email, t)
}

func GeneratePasswordResetToken(db *gorm.DB, email string) (*model.PasswordResetToken, error) {
	t, err := security.MakePasswordResetToken(email, time.Now())
	if err != nil {
		return nil, err
	}

	return t, replace(db, &model.PasswordResetToken{}, email, t)
}

func GenerateTwoFactorToken(db *gorm.DB, email string) (*model.TwoFactorToken, error) {
	t, err := security.MakeTwoFactorToken(email, time.Now())
	if err != nil {
		return nil, err
	}

	return t, replace(db, &model.TwoFactorToken{}, email, t)
}

func replace(db *gorm.DB, table any, email string, row any) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("email = ?", email).Delete(table).Error; err != nil {
			return err
		}

		return tx.Create(row).Error
	})
}
