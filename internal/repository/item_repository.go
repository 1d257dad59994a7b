package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/shinyyama/barter-backend/internal/model"
	"gorm.io/gorm"
)

var ErrDBNotReady = errors.New("database not initialized")

// ValueBand selects valued items whose estimate lies in [Min, Max].
type ValueBand struct {
	Min             float64
	Max             float64
	ExcludeOwnerUID string
	ExcludeItemID   uint64
	Limit           int
}

type ItemFilter struct {
	Query      string
	MinValue   *float64
	MaxValue   *float64
	ExcludeUID string
	Limit      int
	Offset     int
}

type ItemRepository interface {
	Create(ctx context.Context, item *model.Item) error
	FindByID(ctx context.Context, id uint64) (*model.Item, error)
	FindByIDs(ctx context.Context, ids []uint64) ([]model.Item, error)
	ListByOwner(ctx context.Context, ownerUID string) ([]model.Item, error)
	FindInValueBand(ctx context.Context, band ValueBand) ([]model.Item, error)
	Search(ctx context.Context, f ItemFilter) ([]model.Item, int64, error)
	UpdateEstimatedValue(ctx context.Context, id uint64, value float64) error
	ListUnvalued(ctx context.Context, limit int) ([]model.Item, error)
	Delete(ctx context.Context, id uint64) error
}

type itemRepository struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepository{db: db}
}

func (r *itemRepository) Create(ctx context.Context, item *model.Item) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	return r.db.WithContext(ctx).Create(item).Error
}

func (r *itemRepository) FindByID(ctx context.Context, id uint64) (*model.Item, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var item model.Item
	if err := r.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByIDs returns the items that exist; missing ids are simply absent.
func (r *itemRepository) FindByIDs(ctx context.Context, ids []uint64) ([]model.Item, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var items []model.Item
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) ListByOwner(ctx context.Context, ownerUID string) ([]model.Item, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var items []model.Item
	if err := r.db.WithContext(ctx).
		Where("owner_uid = ?", ownerUID).
		Order("created_at DESC, id DESC").
		Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// FindInValueBand orders newest first. Items without an estimate never match.
func (r *itemRepository) FindInValueBand(ctx context.Context, band ValueBand) ([]model.Item, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	q := r.db.WithContext(ctx).
		Where("estimated_value IS NOT NULL AND estimated_value BETWEEN ? AND ?", band.Min, band.Max)
	if band.ExcludeOwnerUID != "" {
		q = q.Where("owner_uid <> ?", band.ExcludeOwnerUID)
	}
	if band.ExcludeItemID != 0 {
		q = q.Where("id <> ?", band.ExcludeItemID)
	}
	if band.Limit > 0 {
		q = q.Limit(band.Limit)
	}
	var items []model.Item
	if err := q.Order("created_at DESC, id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) Search(ctx context.Context, f ItemFilter) ([]model.Item, int64, error) {
	if r.db == nil {
		return nil, 0, ErrDBNotReady
	}
	q := r.db.WithContext(ctx).Model(&model.Item{})
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + escapeLike(s) + "%"
		q = q.Where("(title LIKE ? OR description LIKE ?)", like, like)
	}
	if f.MinValue != nil {
		q = q.Where("estimated_value >= ?", *f.MinValue)
	}
	if f.MaxValue != nil {
		q = q.Where("estimated_value <= ?", *f.MaxValue)
	}
	if f.ExcludeUID != "" {
		q = q.Where("owner_uid <> ?", f.ExcludeUID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var items []model.Item
	if err := q.Order("created_at DESC, id DESC").
		Limit(f.Limit).
		Offset(f.Offset).
		Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *itemRepository) UpdateEstimatedValue(ctx context.Context, id uint64, value float64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).
		Model(&model.Item{}).
		Where("id = ?", id).
		Update("estimated_value", value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// MySQL reports zero rows when the value is unchanged.
		var n int64
		if err := r.db.WithContext(ctx).Model(&model.Item{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return gorm.ErrRecordNotFound
		}
	}
	return nil
}

// ListUnvalued returns items without an estimate, oldest first.
func (r *itemRepository) ListUnvalued(ctx context.Context, limit int) ([]model.Item, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	q := r.db.WithContext(ctx).Where("estimated_value IS NULL").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var items []model.Item
	if err := q.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *itemRepository) Delete(ctx context.Context, id uint64) error {
	if r.db == nil {
		return ErrDBNotReady
	}
	res := r.db.WithContext(ctx).Delete(&model.Item{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
