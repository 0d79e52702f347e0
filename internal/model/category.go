package model

import "time"

type Category struct {
	ID        string     `gorm:"primaryKey;size:16" json:"id"`
	Name      string     `gorm:"size:128;not null" json:"name"`
	Slug      string     `gorm:"size:160;uniqueIndex;not null" json:"slug"`
	ParentID  *string    `gorm:"index;size:16" json:"parentId,omitempty"` // nil for root categories
	ImageKey  string     `json:"-"`
	ImageURL  string     `json:"imageUrl,omitempty"`
	Position  int        `gorm:"default:0" json:"position"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	Children  []Category `gorm:"foreignKey:ParentID" json:"-"`
}
