package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/hci-study-backend/internal/data/repos"
	httpH "github.com/yungbote/hci-study-backend/internal/http/handlers"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
	"github.com/yungbote/hci-study-backend/internal/services"
)

type Services struct {
	User      services.UserService
	Selection services.SelectionService
}

type Handlers struct {
	Health    *httpH.HealthHandler
	User      *httpH.UserHandler
	Selection *httpH.SelectionHandler
}

func wireRepos(db *gorm.DB, log *logger.Logger) repos.Repos {
	log.Info("Wiring repos...")
	return repos.New(db, log)
}

func wireServices(db *gorm.DB, log *logger.Logger, r repos.Repos) Services {
	log.Info("Wiring services...")
	return Services{
		User:      services.NewUserService(db, log, r.User),
		Selection: services.NewSelectionService(db, log, r.User, r.Selection),
	}
}

func wireHandlers(log *logger.Logger, s Services, pinger httpH.Pinger) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:    httpH.NewHealthHandler(pinger),
		User:      httpH.NewUserHandler(s.User, s.Selection),
		Selection: httpH.NewSelectionHandler(s.Selection),
	}
}
