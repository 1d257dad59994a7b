package service

import (
	"context"

	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/repository"
)

type WishlistService interface {
	Add(ctx context.Context, uid string, itemID uint64) error
	Remove(ctx context.Context, uid string, itemID uint64) error
	// Toggle flips membership and returns whether the item is now saved.
	Toggle(ctx context.Context, uid string, itemID uint64) (bool, error)
	List(ctx context.Context, uid string) ([]model.Item, error)
}

type wishlistService struct {
	repo  repository.WishlistRepository
	items repository.ItemRepository
}

func NewWishlistService(repo repository.WishlistRepository, items repository.ItemRepository) WishlistService {
	return &wishlistService{repo: repo, items: items}
}

func (s *wishlistService) Add(ctx context.Context, uid string, itemID uint64) error {
	if err := s.check(ctx, uid, itemID); err != nil {
		return err
	}
	_, err := s.repo.Add(ctx, uid, itemID)
	return err
}

func (s *wishlistService) Remove(ctx context.Context, uid string, itemID uint64) error {
	if uid == "" || itemID == 0 {
		return validationf("user and item are required")
	}
	_, err := s.repo.Remove(ctx, uid, itemID)
	return err
}

func (s *wishlistService) Toggle(ctx context.Context, uid string, itemID uint64) (bool, error) {
	if err := s.check(ctx, uid, itemID); err != nil {
		return false, err
	}
	removed, err := s.repo.Remove(ctx, uid, itemID)
	if err != nil {
		return false, err
	}
	if removed {
		return false, nil
	}
	if _, err := s.repo.Add(ctx, uid, itemID); err != nil {
		return false, err
	}
	return true, nil
}

func (s *wishlistService) List(ctx context.Context, uid string) ([]model.Item, error) {
	if uid == "" {
		return nil, validationf("user is required")
	}
	return s.repo.ListItems(ctx, uid)
}

func (s *wishlistService) check(ctx context.Context, uid string, itemID uint64) error {
	if uid == "" || itemID == 0 {
		return validationf("user and item are required")
	}
	item, err := s.items.FindByID(ctx, itemID)
	if err != nil {
		return storeErr(err, "item")
	}
	if item.OwnerUID == uid {
		return validationf("cannot save your own item")
	}
	return nil
}
