package user

import (
	"context"
	"errors"

	"gorm.io/gorm"

	types "github.com/yungbote/hci-study-backend/internal/domain"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

type UserRepo interface {
	List(ctx context.Context, tx *gorm.DB) ([]*types.User, error)
	GetByID(ctx context.Context, tx *gorm.DB, userID int64) (*types.User, error)
	Create(ctx context.Context, tx *gorm.DB, u *types.User) (*types.User, error)
	// ReplaceProfile overwrites every demographic field. It returns nil, nil
	// when the user does not exist.
	ReplaceProfile(ctx context.Context, tx *gorm.DB, userID int64, p types.UserProfile) (*types.User, error)
	Exists(ctx context.Context, tx *gorm.DB, userID int64) (bool, error)
}

type userRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	repoLog := baseLog.With("repo", "UserRepo")
	return &userRepo{db: db, log: repoLog}
}

func (ur *userRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return ur.db
}

func (ur *userRepo) List(ctx context.Context, tx *gorm.DB) ([]*types.User, error) {
	results := []*types.User{}
	if err := ur.conn(tx).WithContext(ctx).
		Order("id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (ur *userRepo) GetByID(ctx context.Context, tx *gorm.DB, userID int64) (*types.User, error) {
	var u types.User
	err := ur.conn(tx).WithContext(ctx).
		Where("id = ?", userID).
		Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, u *types.User) (*types.User, error) {
	if u == nil {
		return nil, errors.New("nil user")
	}
	u.ID = 0
	if err := ur.conn(tx).WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (ur *userRepo) ReplaceProfile(ctx context.Context, tx *gorm.DB, userID int64, p types.UserProfile) (*types.User, error) {
	var out *types.User
	err := ur.conn(tx).WithContext(ctx).Transaction(func(txx *gorm.DB) error {
		var u types.User
		if err := txx.Where("id = ?", userID).Take(&u).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		p.Apply(&u)
		// Select("*") so nil pointers are written as NULL.
		if err := txx.Model(&u).Select("*").Omit("id").Updates(&u).Error; err != nil {
			return err
		}
		out = &u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (ur *userRepo) Exists(ctx context.Context, tx *gorm.DB, userID int64) (bool, error) {
	var count int64
	if err := ur.conn(tx).WithContext(ctx).
		Model(&types.User{}).
		Where("id = ?", userID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
