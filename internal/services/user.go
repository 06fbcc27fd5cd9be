package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/hci-study-backend/internal/data/repos"
	types "github.com/yungbote/hci-study-backend/internal/domain"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

type UserService interface {
	List(ctx context.Context) ([]*types.User, error)
	Get(ctx context.Context, userID int64) (*types.User, error)
	Create(ctx context.Context, p types.UserProfile) (*types.User, error)
	Update(ctx context.Context, userID int64, p types.UserProfile) (*types.User, error)
}

type userService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
}

func NewUserService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo) UserService {
	serviceLog := log.With("service", "UserService")
	return &userService{db: db, log: serviceLog, userRepo: userRepo}
}

func validateProfile(p types.UserProfile) error {
	if p.TechComfort != nil && (*p.TechComfort < 1 || *p.TechComfort > 7) {
		return invalidRequest(ErrInvalidTechScore)
	}
	return nil
}

func (us *userService) List(ctx context.Context) ([]*types.User, error) {
	users, err := us.userRepo.List(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (us *userService) Get(ctx context.Context, userID int64) (*types.User, error) {
	u, err := us.userRepo.GetByID(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u == nil {
		return nil, notFound()
	}
	return u, nil
}

func (us *userService) Create(ctx context.Context, p types.UserProfile) (*types.User, error) {
	if err := validateProfile(p); err != nil {
		return nil, err
	}
	u := &types.User{}
	p.Apply(u)
	created, err := us.userRepo.Create(ctx, nil, u)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	us.log.Info("user created", "user_id", created.ID)
	return created, nil
}

func (us *userService) Update(ctx context.Context, userID int64, p types.UserProfile) (*types.User, error) {
	if err := validateProfile(p); err != nil {
		return nil, err
	}
	u, err := us.userRepo.ReplaceProfile(ctx, nil, userID, p)
	if err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	if u == nil {
		return nil, notFound()
	}
	us.log.Info("user updated", "user_id", userID)
	return u, nil
}
