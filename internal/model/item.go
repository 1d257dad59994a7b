package model

import "time"

type Item struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	OwnerUID       string    `gorm:"column:owner_uid;size:128;index;not null"`
	Title          string    `gorm:"size:120;not null"`
	Description    string    `gorm:"type:text;not null"`
	EstimatedValue *float64  `gorm:"column:estimated_value;index"`
	ImageURL       *string   `gorm:"size:512"`
	DesiredItems   []string  `gorm:"column:desired_items;type:json;serializer:json"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

func (Item) TableName() string {
	return "items"
}

// HasValue reports whether the item has been valued.
func (i *Item) HasValue() bool {
	return i != nil && i.EstimatedValue != nil
}
