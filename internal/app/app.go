package app

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/yungbote/hci-study-backend/internal/data/db"
	apphttp "github.com/yungbote/hci-study-backend/internal/http"
	"github.com/yungbote/hci-study-backend/internal/observability"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

// App owns the process-wide resources of the API server: the logger, the
// pooled database handle, the HTTP server, and the tracer provider.
type App struct {
	Log      *logger.Logger
	Cfg      Config
	Store    *db.PostgresService
	Services Services
	Metrics  *observability.Metrics
	Server   *apphttp.Server

	otelShutdown func(context.Context) error
}

func New(ctx context.Context, log *logger.Logger) (*App, error) {
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	store, err := db.NewPostgresService(log, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := db.AutoMigrateAll(store.DB()); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("database automigrate: %w", err)
		}
	}

	metrics := observability.Init()
	reposet := wireRepos(store.DB(), log)
	serviceset := wireServices(store.DB(), log, reposet)
	handlerset := wireHandlers(log, serviceset, store)

	server := apphttp.NewServer(apphttp.RouterConfig{
		Log:              log,
		Metrics:          metrics,
		ServiceName:      cfg.ServiceName,
		AllowedOrigins:   cfg.AllowedOrigins,
		HealthHandler:    handlerset.Health,
		UserHandler:      handlerset.User,
		SelectionHandler: handlerset.Selection,
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Store:        store,
		Services:     serviceset,
		Metrics:      metrics,
		Server:       server,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves until ctx is cancelled, then drains in-flight requests within
// the configured shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	g, gctx := errgroup.WithContext(ctx)

	addr := ":" + strconv.Itoa(a.Cfg.Port)
	g.Go(func() error {
		a.Log.Info("Server listening", "addr", addr)
		return a.Server.Run(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Cfg.ShutdownTimeout)
		defer cancel()
		a.Log.Info("Server shutting down")
		return a.Server.Shutdown(shutdownCtx)
	})
	if a.Metrics != nil {
		g.Go(func() error {
			return a.Metrics.RunPostgresCollector(gctx, a.Log, a.Store.DB())
		})
	}
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.Log.Warn("database close failed", "error", err)
		}
	}
	a.Log.Sync()
}
