package db

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/bookmatch-backend/internal/platform/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"

	// mysqlTunnelNetwork is the dial network name registered by the SSH tunnel.
	mysqlTunnelNetwork = "ssh-tunnel"
)

type Config struct {
	Driver   string
	DSN      string
	Host     string
	Port     string
	User     string
	Password string
	Name     string

	MaxOpenConns  int
	MaxIdleConns  int
	SlowThreshold time.Duration
	// Tunneled makes MySQL connections dial through the registered SSH tunnel.
	Tunneled bool
}

// Open connects to the relational store selected by cfg.Driver.
func Open(ctx context.Context, baseLog *logger.Logger, cfg Config) (*gorm.DB, error) {
	log := baseLog.With("service", "RelationalDB", "driver", cfg.Driver)

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = time.Second
	}
	gormLog := gormLogger.New(
		stdLog(),
		gormLogger.Config{
			SlowThreshold:             slow,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql db: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
	}

	log.Info("Connected to relational store")
	return db, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	switch cfg.Driver {
	case DriverPostgres:
		if dsn == "" {
			dsn = fmt.Sprintf(
				"postgres://%s:%s@%s:%s/%s?sslmode=disable",
				url.QueryEscape(cfg.User),
				url.QueryEscape(cfg.Password),
				cfg.Host,
				orDefault(cfg.Port, "5432"),
				cfg.Name,
			)
		}
		return postgres.Open(dsn), nil
	case DriverMySQL:
		if dsn == "" {
			network := "tcp"
			if cfg.Tunneled {
				network = mysqlTunnelNetwork
			}
			dsn = fmt.Sprintf(
				"%s:%s@%s(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
				cfg.User,
				cfg.Password,
				network,
				cfg.Host,
				orDefault(cfg.Port, "3306"),
				cfg.Name,
			)
		}
		return mysql.Open(dsn), nil
	case DriverSQLite:
		if dsn == "" {
			dsn = "file:bookmatch.db?_busy_timeout=5000"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.Driver)
	}
}

// MySQLTunnelNetwork is the network name a tunnel must be registered under
// for Config.Tunneled to take effect.
func MySQLTunnelNetwork() string { return mysqlTunnelNetwork }

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

func stdLog() gormLogger.Writer {
	return log.New(os.Stdout, "\r\n", log.LstdFlags)
}
