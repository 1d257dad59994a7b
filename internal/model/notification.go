package model

import "time"

const (
	NotificationTypeBid     = "bid"
	NotificationTypeMatch   = "match"
	NotificationTypeMessage = "message"
	NotificationTypeSystem  = "system"
)

type Notification struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement"`
	UserUID   string     `gorm:"column:user_uid;size:128;index;not null"`
	Type      string     `gorm:"column:type;size:16;not null"`
	Title     string     `gorm:"column:title;size:255"`
	Body      string     `gorm:"column:body;type:text"`
	ItemID    *uint64    `gorm:"column:item_id;index"`
	MatchID   *uint64    `gorm:"column:match_id;index"`
	BidID     *uint64    `gorm:"column:bid_id;index"`
	ReadAt    *time.Time `gorm:"column:read_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
}

func (Notification) TableName() string {
	return "notifications"
}

func ValidNotificationType(t string) bool {
	switch t {
	case NotificationTypeBid, NotificationTypeMatch, NotificationTypeMessage, NotificationTypeSystem:
		return true
	}
	return false
}
