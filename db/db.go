package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/virajlab/nautifier/db/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open opens the configured database. Only the sqlite driver is supported.
func Open(ctx context.Context, cfg Config) (*gorm.DB, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" {
		driver = "sqlite"
	}
	if driver != "sqlite" {
		return nil, fmt.Errorf("unsupported db driver: %s", driver)
	}
	dsn, err := ResolveSQLiteDSN(cfg.DSN)
	if err != nil {
		return nil, err
	}
	dsn = applySQLitePragmas(dsn, cfg.SQLite)

	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrate(gdb *gorm.DB) error {
	if gdb == nil {
		return fmt.Errorf("nil db")
	}
	return gdb.AutoMigrate(
		&models.EventRecord{},
	)
}

func applySQLitePragmas(dsn string, cfg SQLiteConfig) string {
	params := url.Values{}
	if cfg.BusyTimeoutMs > 0 {
		params.Set("_busy_timeout", fmt.Sprintf("%d", cfg.BusyTimeoutMs))
	}
	if cfg.WAL {
		params.Set("_journal_mode", "WAL")
	}
	if cfg.ForeignKeys {
		params.Set("_foreign_keys", "on")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + params.Encode()
}
