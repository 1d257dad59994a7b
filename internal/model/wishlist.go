package model

import "time"

type WishlistEntry struct {
	UserUID   string    `gorm:"column:user_uid;size:128;primaryKey"`
	ItemID    uint64    `gorm:"column:item_id;primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (WishlistEntry) TableName() string {
	return "wishlists"
}
