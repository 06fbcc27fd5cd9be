package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/hci-study-backend/internal/data/dberr"
	"github.com/yungbote/hci-study-backend/internal/data/repos"
	types "github.com/yungbote/hci-study-backend/internal/domain"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

type SelectionService interface {
	ListForUser(ctx context.Context, userID int64) ([]*types.Selection, error)
	Upsert(ctx context.Context, s types.Selection) (*types.Selection, error)
}

type selectionService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	selectionRepo repos.SelectionRepo
}

func NewSelectionService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, selectionRepo repos.SelectionRepo) SelectionService {
	serviceLog := log.With("service", "SelectionService")
	return &selectionService{db: db, log: serviceLog, userRepo: userRepo, selectionRepo: selectionRepo}
}

func (ss *selectionService) ListForUser(ctx context.Context, userID int64) ([]*types.Selection, error) {
	rows, err := ss.selectionRepo.ListByUser(ctx, nil, userID)
	if err != nil {
		return nil, fmt.Errorf("list selections: %w", err)
	}
	return rows, nil
}

func (ss *selectionService) Upsert(ctx context.Context, s types.Selection) (*types.Selection, error) {
	if !types.ValidChoice(s.Selection) {
		return nil, invalidSelection()
	}
	if strings.TrimSpace(s.ImageID) == "" {
		return nil, invalidRequest(errors.New("image_id is required"))
	}
	exists, err := ss.userRepo.Exists(ctx, nil, s.UserID)
	if err != nil {
		return nil, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return nil, notFound()
	}
	out, err := ss.selectionRepo.Upsert(ctx, nil, &s)
	if err != nil {
		// the user can be deleted between the check and the write
		if dberr.IsForeignKeyViolation(err) {
			return nil, notFound()
		}
		return nil, fmt.Errorf("upsert selection: %w", err)
	}
	ss.log.Debug("selection saved", "user_id", out.UserID, "image_id", out.ImageID)
	return out, nil
}
