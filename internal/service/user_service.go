package service

import (
	"context"

	"github.com/shinyyama/barter-backend/internal/model"
	"github.com/shinyyama/barter-backend/internal/repository"
)

type UserService interface {
	Ensure(ctx context.Context, uid string) (*model.User, error)
	Get(ctx context.Context, uid string) (*model.User, error)
}

type userService struct {
	repo repository.UserRepository
}

func NewUserService(repo repository.UserRepository) UserService {
	return &userService{repo: repo}
}

func (s *userService) Ensure(ctx context.Context, uid string) (*model.User, error) {
	if uid == "" {
		return nil, validationf("uid is required")
	}
	return s.repo.Ensure(ctx, uid)
}

func (s *userService) Get(ctx context.Context, uid string) (*model.User, error) {
	if uid == "" {
		return nil, validationf("uid is required")
	}
	u, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return nil, storeErr(err, "user")
	}
	return u, nil
}
