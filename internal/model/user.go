package model

import "time"

type User struct {
	UID         string    `gorm:"column:uid;size:128;primaryKey"`
	DisplayName string    `gorm:"column:display_name;size:120"`
	PhotoURL    *string   `gorm:"column:photo_url;size:512"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
