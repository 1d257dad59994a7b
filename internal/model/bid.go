package model

import "time"

const (
	BidStatusPending  = "pending"
	BidStatusAccepted = "accepted"
	BidStatusRejected = "rejected"
)

type Bid struct {
	ID            uint64     `gorm:"primaryKey;autoIncrement"`
	OfferedItemID uint64     `gorm:"column:offered_item_id;not null;uniqueIndex:uk_bids_offer,priority:2"`
	TargetItemID  uint64     `gorm:"column:target_item_id;not null;index;uniqueIndex:uk_bids_offer,priority:3"`
	BidderUID     string     `gorm:"column:bidder_uid;size:128;not null;uniqueIndex:uk_bids_offer,priority:1"`
	Status        string     `gorm:"size:16;not null;default:pending"`
	CreatedAt     time.Time  `gorm:"column:created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime"`
	ResolvedAt    *time.Time `gorm:"column:resolved_at"`
}

func (Bid) TableName() string {
	return "bids"
}
