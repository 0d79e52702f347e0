package security

import (
	"bitwise74/storefront-api/internal/model"
	"bitwise74/storefront-api/pkg/util"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	VerificationTokenTTL = time.Hour
	ResetTokenTTL        = time.Hour
	TwoFactorTokenTTL    = 5 * time.Minute
)

var ErrNoEmail = errors.New("no email provided")

// MakeVerificationToken builds a fresh email verification token. Nothing is
// persisted here.
func MakeVerificationToken(email string, now time.Time) (*model.VerificationToken, error) {
	if email == "" {
		return nil, ErrNoEmail
	}

	return &model.VerificationToken{
		Email:   email,
		Token:   uuid.NewString(),
		Expires: now.Add(VerificationTokenTTL),
	}, nil
}

func MakePasswordResetToken(email string, now time.Time) (*model.PasswordResetToken, error) {
	if email == "" {
		return nil, ErrNoEmail
	}

	return &model.PasswordResetToken{
		Email:   email,
		Token:   uuid.NewString(),
		Expires: now.Add(ResetTokenTTL),
	}, nil
}

// MakeTwoFactorToken builds a 6 digit code mailed during two-factor sign in
func MakeTwoFactorToken(email string, now time.Time) (*model.TwoFactorToken, error) {
	if email == "" {
		return nil, ErrNoEmail
	}

	code, err := util.GenerateCode(100_000, 999_999)
	if err != nil {
		return nil, err
	}

	return &model.TwoFactorToken{
		Email:   email,
		Token:   code,
		Expires: now.Add(TwoFactorTokenTTL),
	}, nil
}
