package repository

import (
	"context"
	"time"

	"github.com/shinyyama/barter-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BidRepository interface {
	// UpsertPending writes one pending bid per offered item in a single transaction
	// and returns the stored rows ordered by offered item id.
	UpsertPending(ctx context.Context, bidderUID string, targetItemID uint64, offeredItemIDs []uint64, now time.Time) ([]model.Bid, error)
	FindByID(ctx context.Context, id uint64) (*model.Bid, error)
	UpdateStatusIfPending(ctx context.Context, id uint64, status string, resolvedAt time.Time) (bool, error)
	ListByTargetItems(ctx context.Context, targetItemIDs []uint64) ([]model.Bid, error)
	ListByBidder(ctx context.Context, bidderUID string) ([]model.Bid, error)
}

type bidRepository struct {
	db *gorm.DB
}

func NewBidRepository(db *gorm.DB) BidRepository {
	return &bidRepository{db: db}
}

func (r *bidRepository) UpsertPending(ctx context.Context, bidderUID string, targetItemID uint64, offeredItemIDs []uint64, now time.Time) ([]model.Bid, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	rows := make([]model.Bid, 0, len(offeredItemIDs))
	for _, id := range offeredItemIDs {
		rows = append(rows, model.Bid{
			OfferedItemID: id,
			TargetItemID:  targetItemID,
			BidderUID:     bidderUID,
			Status:        model.BidStatusPending,
			CreatedAt:     now,
		})
	}
	var stored []model.Bid
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "bidder_uid"}, {Name: "offered_item_id"}, {Name: "target_item_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"status":      model.BidStatusPending,
				"created_at":  now,
				"updated_at":  now,
				"resolved_at": nil,
			}),
		}).Create(&rows).Error; err != nil {
			return err
		}
		return tx.Where("bidder_uid = ? AND target_item_id = ? AND offered_item_id IN ?", bidderUID, targetItemID, offeredItemIDs).
			Order("offered_item_id ASC").
			Find(&stored).Error
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *bidRepository) FindByID(ctx context.Context, id uint64) (*model.Bid, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var b model.Bid
	if err := r.db.WithContext(ctx).First(&b, id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bidRepository) UpdateStatusIfPending(ctx context.Context, id uint64, status string, resolvedAt time.Time) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Bid{}).
		Where("id = ? AND status = ?", id, model.BidStatusPending).
		Updates(map[string]interface{}{
			"status":      status,
			"resolved_at": resolvedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *bidRepository) ListByTargetItems(ctx context.Context, targetItemIDs []uint64) ([]model.Bid, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if len(targetItemIDs) == 0 {
		return nil, nil
	}
	var list []model.Bid
	if err := r.db.WithContext(ctx).
		Where("target_item_id IN ?", targetItemIDs).
		Order("created_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *bidRepository) ListByBidder(ctx context.Context, bidderUID string) ([]model.Bid, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var list []model.Bid
	if err := r.db.WithContext(ctx).
		Where("bidder_uid = ?", bidderUID).
		Order("created_at DESC, id DESC").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
