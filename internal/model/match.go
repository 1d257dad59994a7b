package model

import "time"

const (
	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
	MatchStatusDeclined = "declined"
)

// Match records interest between two items. ItemAID belongs to the initiator.
// PairLow/PairHigh hold the unordered pair and carry the unique key.
type Match struct {
	ID        uint64     `gorm:"primaryKey;autoIncrement"`
	ItemAID   uint64     `gorm:"column:item_a_id;not null;index"`
	ItemBID   uint64     `gorm:"column:item_b_id;not null;index"`
	PairLow   uint64     `gorm:"column:pair_low;not null;uniqueIndex:uk_matches_pair,priority:1"`
	PairHigh  uint64     `gorm:"column:pair_high;not null;uniqueIndex:uk_matches_pair,priority:2"`
	Status    string     `gorm:"size:16;not null;default:pending"`
	MatchedAt time.Time  `gorm:"column:matched_at;not null"`
	DecidedAt *time.Time `gorm:"column:decided_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime"`
}

func (Match) TableName() string {
	return "matches"
}

// CanonicalPair orders two item ids so that the smaller comes first.
func CanonicalPair(a, b uint64) (uint64, uint64) {
	if a < b {
		return a, b
	}
	return b, a
}

func NewMatch(viewerItemID, candidateItemID uint64, now time.Time) *Match {
	lo, hi := CanonicalPair(viewerItemID, candidateItemID)
	return &Match{
		ItemAID:   viewerItemID,
		ItemBID:   candidateItemID,
		PairLow:   lo,
		PairHigh:  hi,
		Status:    MatchStatusPending,
		MatchedAt: now,
	}
}
