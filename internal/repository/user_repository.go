package repository

import (
	"context"

	"github.com/shinyyama/barter-backend/internal/model"
	"gorm.io/gorm"
)

type UserRepository interface {
	Ensure(ctx context.Context, uid string) (*model.User, error)
	FindByUID(ctx context.Context, uid string) (*model.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Ensure(ctx context.Context, uid string) (*model.User, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	u := model.User{UID: uid}
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).FirstOrCreate(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepository) FindByUID(ctx context.Context, uid string) (*model.User, error) {
	if r.db == nil {
		return nil, ErrDBNotReady
	}
	var u model.User
	if err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}
