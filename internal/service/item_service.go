package service

import (
	"context"
	"errors"
	"strings"

	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/reqctx"
	"github.com/shinyyama/barter-backend/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	maxDesiredItems = 20
	// image_url is VARCHAR(512).
	maxImageURLLen = 512
)

type CreateItemInput struct {
	Title          string
	Description    string
	ImageURL       *string
	DesiredItems   []string
	EstimatedValue *float64
}

type ItemService interface {
	Create(ctx context.Context, ownerUID string, in CreateItemInput) (*model.Item, error)
	Get(ctx context.Context, id uint64) (*model.Item, error)
	ListByOwner(ctx context.Context, ownerUID string) ([]model.Item, error)
	Explore(ctx context.Context, f repository.ItemFilter) ([]model.Item, int64, error)
	Delete(ctx context.Context, id uint64, ownerUID string) error
	Revalue(ctx context.Context, id uint64, ownerUID string) (*model.Item, error)
	// BackfillValues values up to limit items that have no estimate and returns how many were updated.
	BackfillValues(ctx context.Context, limit int) (int, error)
}

type itemService struct {
	repo      repository.ItemRepository
	users     repository.UserRepository
	valuation ValuationService
	log       logrus.FieldLogger
}

func NewItemService(repo repository.ItemRepository, users repository.UserRepository, valuation ValuationService, log logrus.FieldLogger) ItemService {
	return &itemService{repo: repo, users: users, valuation: valuation, log: log}
}

func (s *itemService) Create(ctx context.Context, ownerUID string, in CreateItemInput) (*model.Item, error) {
	if ownerUID == "" {
		return nil, validationf("owner is required")
	}
	title := strings.TrimSpace(in.Title)
	description := strings.TrimSpace(in.Description)
	if title == "" || len(title) > 120 {
		return nil, validationf("invalid title")
	}
	if description == "" {
		return nil, validationf("invalid description")
	}
	var imageURL *string
	if in.ImageURL != nil {
		u := strings.TrimSpace(*in.ImageURL)
		if strings.HasPrefix(u, "data:") {
			return nil, validationf("imageUrl must be a URL, not data URI")
		}
		if len(u) > maxImageURLLen {
			return nil, validationf("imageUrl must be at most %d characters", maxImageURLLen)
		}
		if u != "" {
			imageURL = &u
		}
	}
	desired, err := normalizeTags(in.DesiredItems)
	if err != nil {
		return nil, err
	}
	if in.EstimatedValue != nil && *in.EstimatedValue < 0 {
		return nil, validationf("estimatedValue must not be negative")
	}

	if _, err := s.users.Ensure(ctx, ownerUID); err != nil {
		return nil, err
	}

	value := in.EstimatedValue
	if value == nil {
		ref := ""
		if imageURL != nil {
			ref = *imageURL
		}
		v := s.valuation.EstimateValue(ctx, title, description, ref)
		value = &v
	}

	item := &model.Item{
		OwnerUID:       ownerUID,
		Title:          title,
		Description:    description,
		EstimatedValue: value,
		ImageURL:       imageURL,
		DesiredItems:   desired,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"item_id": item.ID, "owner": ownerUID, "value": *value}).Info("item created")
	return item, nil
}

func (s *itemService) Get(ctx context.Context, id uint64) (*model.Item, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "item")
	}
	return item, nil
}

func (s *itemService) ListByOwner(ctx context.Context, ownerUID string) ([]model.Item, error) {
	if ownerUID == "" {
		return nil, validationf("owner is required")
	}
	return s.repo.ListByOwner(ctx, ownerUID)
}

func (s *itemService) Explore(ctx context.Context, f repository.ItemFilter) ([]model.Item, int64, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	if f.MinValue != nil && f.MaxValue != nil && *f.MinValue > *f.MaxValue {
		return nil, 0, validationf("min must not exceed max")
	}
	return s.repo.Search(ctx, f)
}

func (s *itemService) Delete(ctx context.Context, id uint64, ownerUID string) error {
	if _, err := s.owned(ctx, id, ownerUID); err != nil {
		return err
	}
	return storeErr(s.repo.Delete(ctx, id), "item")
}

func (s *itemService) Revalue(ctx context.Context, id uint64, ownerUID string) (*model.Item, error) {
	item, err := s.owned(ctx, id, ownerUID)
	if err != nil {
		return nil, err
	}
	ref := ""
	if item.ImageURL != nil {
		ref = *item.ImageURL
	}
	v := s.valuation.EstimateValue(reqctx.WithItemID(ctx, id), item.Title, item.Description, ref)
	if err := s.repo.UpdateEstimatedValue(ctx, id, v); err != nil {
		return nil, storeErr(err, "item")
	}
	item.EstimatedValue = &v
	return item, nil
}

func (s *itemService) BackfillValues(ctx context.Context, limit int) (int, error) {
	items, err := s.repo.ListUnvalued(ctx, limit)
	if err != nil {
		return 0, err
	}
	updated := 0
	for i := range items {
		if err := ctx.Err(); err != nil {
			return updated, err
		}
		it := &items[i]
		ref := ""
		if it.ImageURL != nil {
			ref = *it.ImageURL
		}
		v := s.valuation.EstimateValue(reqctx.WithItemID(ctx, it.ID), it.Title, it.Description, ref)
		if err := s.repo.UpdateEstimatedValue(ctx, it.ID, v); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return updated, err
		}
		updated++
		s.log.WithFields(logrus.Fields{"item_id": it.ID, "value": v}).Info("item valued")
	}
	return updated, nil
}

func (s *itemService) owned(ctx context.Context, id uint64, ownerUID string) (*model.Item, error) {
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "item")
	}
	if item.OwnerUID != ownerUID {
		return nil, ErrForbidden
	}
	return item, nil
}

// normalizeTags trims, drops empties and case-insensitive duplicates, keeping first-seen order.
func normalizeTags(tags []string) ([]string, error) {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	if len(out) > maxDesiredItems {
		return nil, validationf("at most %d desired items", maxDesiredItems)
	}
	return out, nil
}
