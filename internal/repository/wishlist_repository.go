package repository

import (
	"context"

	"github.com/shinyyama/barter-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WishlistRepository interface {
	Add(ctx context.Context, userUID string, itemID uint64) (bool, error)
	Remove(ctx context.Context, userUID string, itemID uint64) (bool, error)
	ListItems(ctx context.Context, userUID string) ([]model.Item, error)
}

type wishlistRepository struct {
	db *gorm.DB
}

func NewWishlistRepository(db *gorm.DB) WishlistRepository {
	return &wishlistRepository{db: db}
}

func (r *wishlistRepository) Add(ctx context.Context, userUID string, itemID uint64) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.WishlistEntry{UserUID: userUID, ItemID: itemID})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *wishlistRepository) Remove(ctx context.Context, userUID string, itemID uint64) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Where("user_uid = ? AND item_id = ?", userUID, itemID).
		Delete(&model.WishlistEntry{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListItems returns saved items, most recently saved first.
func (r *wishlistRepository) ListItems(ctx context.Context, userUID string) ([]model.Item, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var items []model.Item
	if err := r.db.WithContext(ctx).
		Joins("JOIN wishlists ON wishlists.item_id = items.id").
		Where("wishlists.user_uid = ?", userUID).
		Order("wishlists.created_at DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}
