package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/hci-study-backend/internal/data/repos/selection"
	"github.com/yungbote/hci-study-backend/internal/data/repos/user"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type SelectionRepo = selection.SelectionRepo

type Repos struct {
	User      UserRepo
	Selection SelectionRepo
}

func New(db *gorm.DB, log *logger.Logger) Repos {
	return Repos{
		User:      user.NewUserRepo(db, log),
		Selection: selection.NewSelectionRepo(db, log),
	}
}
