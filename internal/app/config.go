package app

import (
	"time"

	"github.com/yungbote/hci-study-backend/internal/data/db"
	httpMW "github.com/yungbote/hci-study-backend/internal/http/middleware"
	"github.com/yungbote/hci-study-backend/internal/platform/envutil"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

type Config struct {
	LogMode         string
	Port            int
	AllowedOrigins  []string
	AutoMigrate     bool
	ShutdownTimeout time.Duration
	ServiceName     string
	Environment     string
	Version         string
	DB              db.Config
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		LogMode:         envutil.String("LOG_MODE", "development"),
		Port:            envutil.Int("API_PORT", 4000),
		AllowedOrigins:  envutil.List("CORS_ALLOWED_ORIGINS", httpMW.DefaultAllowedOrigins),
		AutoMigrate:     envutil.Bool("DB_AUTO_MIGRATE", true),
		ShutdownTimeout: envutil.Seconds("HTTP_SHUTDOWN_TIMEOUT_SECONDS", 15*time.Second),
		ServiceName:     envutil.String("OTEL_SERVICE_NAME", "hci-study-api"),
		Environment:     envutil.String("APP_ENV", "development"),
		Version:         envutil.String("APP_VERSION", "dev"),
		DB:              db.ConfigFromEnv(),
	}
	if log != nil {
		log.Info("config loaded",
			"port", cfg.Port,
			"db", cfg.DB.Target(),
			"auto_migrate", cfg.AutoMigrate,
			"allowed_origins", cfg.AllowedOrigins,
		)
	}
	return cfg
}
