package selection

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/hci-study-backend/internal/domain"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

type SelectionRepo interface {
	ListByUser(ctx context.Context, tx *gorm.DB, userID int64) ([]*types.Selection, error)
	// Upsert inserts the row or overwrites selection and updated_at on a
	// (user_id, image_id) conflict in one statement.
	Upsert(ctx context.Context, tx *gorm.DB, s *types.Selection) (*types.Selection, error)
}

type selectionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSelectionRepo(db *gorm.DB, baseLog *logger.Logger) SelectionRepo {
	repoLog := baseLog.With("repo", "SelectionRepo")
	return &selectionRepo{db: db, log: repoLog}
}

func (sr *selectionRepo) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return sr.db
}

func (sr *selectionRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID int64) ([]*types.Selection, error) {
	results := []*types.Selection{}
	if err := sr.conn(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Order("image_id ASC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (sr *selectionRepo) Upsert(ctx context.Context, tx *gorm.DB, s *types.Selection) (*types.Selection, error) {
	row := &types.Selection{UserID: s.UserID, ImageID: s.ImageID, Selection: s.Selection}
	if err := sr.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "image_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selection", "updated_at"}),
		}).
		Create(row).Error; err != nil {
		return nil, err
	}
	return row, nil
}
