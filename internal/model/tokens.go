package model

import "time"

type VerificationToken struct {
	ID      int       `gorm:"primaryKey;autoIncrement"`
	Email   string    `gorm:"not null;uniqueIndex:idx_verification_email_token"`
	Token   string    `gorm:"not null;uniqueIndex;uniqueIndex:idx_verification_email_token"`
	Expires time.Time `gorm:"index;not null"`
	UserID  string    `gorm:"index"` // set when an existing user changes their email
}

type PasswordResetToken struct {
	ID      int       `gorm:"primaryKey;autoIncrement"`
	Email   string    `gorm:"not null;uniqueIndex:idx_reset_email_token"`
	Token   string    `gorm:"not null;uniqueIndex;uniqueIndex:idx_reset_email_token"`
	Expires time.Time `gorm:"index;not null"`
}

type TwoFactorToken struct {
	ID      int       `gorm:"primaryKey;autoIncrement"`
	Email   string    `gorm:"not null;uniqueIndex:idx_two_factor_email_token"`
	Token   string    `gorm:"not null;uniqueIndex:idx_two_factor_email_token"`
	Expires time.Time `gorm:"index;not null"`
}

// TwoFactorConfirmation is created once a 2FA code was accepted and consumed
// by the sign-in that follows it
type TwoFactorConfirmation struct {
	ID     int    `gorm:"primaryKey;autoIncrement"`
	UserID string `gorm:"uniqueIndex;not null"`
}
