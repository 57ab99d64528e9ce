package common

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"portfolio/config"
)

// ConnectDb opens the main store with the configured driver.
func ConnectDb(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormLogLevel(cfg)),
	}

	var dialector gorm.Dialector
	switch cfg.DbDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DatabaseURL)
	case "sqlite":
		if err := ensureDir(cfg.SqliteDb); err != nil {
			return nil, err
		}
		dialector = sqlite.Open(cfg.SqliteDb)
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.DbDriver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DbDriver, err)
	}

	log.Info("database opened", zap.String("driver", cfg.DbDriver), zap.String("dsn", cfg.DSNSafe()))
	return db, nil
}

// ConnectAnalyticsDb opens the separate read-tracking store. It returns
// (nil, nil) when ANALYTICS_DB is not set, which disables analytics.
func ConnectAnalyticsDb(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	if cfg.AnalyticsDb == "" {
		log.Info("analytics_db not set, analytics will be disabled")
		return nil, nil
	}
	if err := ensureDir(cfg.AnalyticsDb); err != nil {
		return nil, err
	}

	db, err := gorm.Open(sqlite.Open(cfg.AnalyticsDb), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormlogger.Default.LogMode(gormLogLevel(cfg)),
	})
	if err != nil {
		return nil, fmt.Errorf("open analytics database: %w", err)
	}

	log.Info("analytics database opened", zap.String("path", cfg.AnalyticsDb))
	return db, nil
}

func gormLogLevel(cfg *config.Config) gormlogger.LogLevel {
	if cfg.LogLevel == "debug" {
		return gormlogger.Info
	}
	return gormlogger.Warn
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
