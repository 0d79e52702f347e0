// Package model defines database models
package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

type User struct {
	ID                 string     `gorm:"primaryKey;size:16" json:"id"`
	Name               string     `gorm:"size:128" json:"name"`
	Email              string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash       *string    `json:"-"` // nil for accounts created through OAuth
	Role               Role       `gorm:"size:16;not null;default:USER" json:"role"`
	IsTwoFactorEnabled bool       `gorm:"default:false" json:"isTwoFactorEnabled"`
	EmailVerified      *time.Time `json:"emailVerified"`
	Image              string     `json:"image"`
	ImageKey           string     `json:"-"`
	ExpiresAt          *time.Time `gorm:"index" json:"-"` // unverified credential accounts are removed after this
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`

	Accounts              []Account              `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	TwoFactorConfirmation *TwoFactorConfirmation `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	ResendRequest         *ResendRequest         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// Account links a user to an identity at an OAuth provider
type Account struct {
	ID                int       `gorm:"primaryKey;autoIncrement"`
	UserID            string    `gorm:"index;not null"`
	Provider          string    `gorm:"size:32;not null;uniqueIndex:idx_provider_account"`
	ProviderAccountID string    `gorm:"not null;uniqueIndex:idx_provider_account"`
	CreatedAt         time.Time
}
