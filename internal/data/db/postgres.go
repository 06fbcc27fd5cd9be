package db

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/hci-study-backend/internal/platform/envutil"
	"github.com/yungbote/hci-study-backend/internal/platform/logger"
)

const sqlitePrefix = "sqlite:"

type Config struct {
	// URL wins over the discrete fields when set. A "sqlite:" prefix selects SQLite.
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		URL:             envutil.String("DATABASE_URL", ""),
		Host:            envutil.String("PGHOST", "localhost"),
		Port:            envutil.Int("PGPORT", 5432),
		User:            envutil.String("PGUSER", "hci_user"),
		Password:        envutil.String("PGPASSWORD", "hci_pass_2024"),
		Name:            envutil.String("PGDATABASE", "hci_study"),
		MaxOpenConns:    envutil.Int("DB_MAX_OPEN_CONNS", 5),
		MaxIdleConns:    envutil.Int("DB_MAX_IDLE_CONNS", 1),
		ConnMaxLifetime: envutil.Seconds("DB_CONN_MAX_LIFETIME_SECONDS", 30*time.Minute),
	}
}

func (c Config) IsSQLite() bool { return strings.HasPrefix(c.URL, sqlitePrefix) }

// DSN returns the connection string handed to the driver.
func (c Config) DSN() string {
	if c.IsSQLite() {
		return strings.TrimPrefix(c.URL, sqlitePrefix)
	}
	if c.URL != "" {
		return c.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Target describes the connection for logs without credentials.
func (c Config) Target() string {
	if c.IsSQLite() {
		return "sqlite"
	}
	if c.URL != "" {
		if u, err := url.Parse(c.URL); err == nil {
			return u.Redacted()
		}
		return "postgres (DATABASE_URL)"
	}
	return fmt.Sprintf("%s@%s:%d/%s", c.User, c.Host, c.Port, c.Name)
}

type PostgresService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostgresService(logg *logger.Logger, cfg Config) (*PostgresService, error) {
	serviceLog := logg.With("service", "PostgresService")

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	dialector := postgres.Open(cfg.DSN())
	if cfg.IsSQLite() {
		dialector = sqlite.Open(cfg.DSN())
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	serviceLog.Info("connected to database", "target", cfg.Target(), "max_open_conns", cfg.MaxOpenConns)
	return &PostgresService{db: db, log: serviceLog}, nil
}

func (s *PostgresService) DB() *gorm.DB { return s.db }

func (s *PostgresService) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresService) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	s.log.Info("database pool closed")
	return sqlDB.Close()
}
