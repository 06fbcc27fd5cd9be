package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/hci-study-backend/internal/http/handlers"
	httpMW "github.com/yungbote/hci-study-backend/internal/http/middleware"
	"github.com/yungbote/hci-study-backend/internal/observability"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	HealthHandler    *httpH.HealthHandler
	UserHandler      *httpH.UserHandler
	SelectionHandler *httpH.SelectionHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.AllowedOrigins))

	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := r.Group("/api")
	{
		if cfg.HealthHandler != nil {
			api.GET("/health", cfg.HealthHandler.HealthCheck)
		}

		if cfg.UserHandler != nil {
			api.GET("/users", cfg.UserHandler.ListUsers)
			api.POST("/users", cfg.UserHandler.CreateUser)
			api.GET("/users/:id", cfg.UserHandler.GetUser)
			api.PUT("/users/:id", cfg.UserHandler.UpdateUser)
			api.GET("/users/:id/selections", cfg.UserHandler.ListSelections)
		}

		if cfg.SelectionHandler != nil {
			api.PUT("/selections", cfg.SelectionHandler.UpsertSelection)
		}
	}

	return r
}
