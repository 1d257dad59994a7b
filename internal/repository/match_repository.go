package repository

import (
	"context"
	"time"

	"github.com/shinyyama/barter-backend/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MatchRepository interface {
	// FindByPair looks the pair up in either orientation.
	FindByPair(ctx context.Context, a, b uint64) (*model.Match, error)
	// CreateIfAbsent inserts m unless the pair already exists and reports whether this call inserted.
	CreateIfAbsent(ctx context.Context, m *model.Match) (bool, error)
	FindByID(ctx context.Context, id uint64) (*model.Match, error)
	UpdateStatusIfPending(ctx context.Context, id uint64, status string, decidedAt time.Time) (bool, error)
	ReopenDeclined(ctx context.Context, id, itemAID, itemBID uint64, decidedBefore, now time.Time) (bool, error)
	ListByItemIDs(ctx context.Context, itemIDs []uint64, status string) ([]model.Match, error)
}

type matchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) MatchRepository {
	return &matchRepository{db: db}
}

func (r *matchRepository) FindByPair(ctx context.Context, a, b uint64) (*model.Match, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	lo, hi := model.CanonicalPair(a, b)
	var m model.Match
	if err := r.db.WithContext(ctx).
		Where("pair_low = ? AND pair_high = ?", lo, hi).
		First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *matchRepository) CreateIfAbsent(ctx context.Context, m *model.Match) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pair_low"}, {Name: "pair_high"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *matchRepository) FindByID(ctx context.Context, id uint64) (*model.Match, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var m model.Match
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *matchRepository) UpdateStatusIfPending(ctx context.Context, id uint64, status string, decidedAt time.Time) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ?", id, model.MatchStatusPending).
		Updates(map[string]interface{}{
			"status":     status,
			"decided_at": decidedAt,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ReopenDeclined puts a declined match back to pending under a new orientation,
// only when it was decided before decidedBefore.
func (r *matchRepository) ReopenDeclined(ctx context.Context, id, itemAID, itemBID uint64, decidedBefore, now time.Time) (bool, error) {
	if r.db == nil {
		return false, ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Match{}).
		Where("id = ? AND status = ? AND decided_at < ?", id, model.MatchStatusDeclined, decidedBefore).
		Updates(map[string]interface{}{
			"item_a_id":  itemAID,
			"item_b_id":  itemBID,
			"status":     model.MatchStatusPending,
			"matched_at": now,
			"decided_at": nil,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *matchRepository) ListByItemIDs(ctx context.Context, itemIDs []uint64, status string) ([]model.Match, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if len(itemIDs) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).Where("(item_a_id IN ? OR item_b_id IN ?)", itemIDs, itemIDs)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var list []model.Match
	if err := q.Order("matched_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
