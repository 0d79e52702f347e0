package model

import "time"

// ResendRequest tracks when a user last asked for a new verification mail
type ResendRequest struct {
	ID         int    `gorm:"primaryKey;autoIncrement"`
	UserID     string `gorm:"uniqueIndex;not null"`
	LastResend time.Time
	Cooldown   time.Time
	Count      int  // resends within the current day
	Blocked    bool // If the user sends too many resend requests they're blocked for the day
}
