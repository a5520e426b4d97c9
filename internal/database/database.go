package database

import (
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"example.com/backstage/services/calendar/config"
)

// Connect opens the write and read-only pools. When no read-only DSN is
// configured both return values share the write pool.
func Connect(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, *gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(logLevel)),
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN), gormCfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to write database")
	}
	if err := configurePool(db, cfg); err != nil {
		return nil, nil, err
	}

	if cfg.ReadOnlyDSN == "" || cfg.ReadOnlyDSN == cfg.DSN {
		return db, db, nil
	}

	readOnlyDB, err := gorm.Open(postgres.Open(cfg.ReadOnlyDSN), gormCfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to connect to read-only database")
	}
	if err := configurePool(readOnlyDB, cfg); err != nil {
		return nil, nil, err
	}

	return db, readOnlyDB, nil
}

// Close closes both pools, once each
func Close(db, readOnlyDB *gorm.DB) error {
	for i, conn := range []*gorm.DB{db, readOnlyDB} {
		if conn == nil || (i == 1 && readOnlyDB == db) {
			continue
		}
		sqlDB, err := conn.DB()
		if err != nil {
			return errors.Wrap(err, "failed to get underlying DB connection")
		}
		if err := sqlDB.Close(); err != nil {
			return errors.Wrap(err, "failed to close DB connection")
		}
	}
	return nil
}

func configurePool(db *gorm.DB, cfg config.DatabaseConfig) error {
	sqlDB, err := db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to get underlying DB connection")
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	return nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "warn", "info":
		return logger.Warn
	default:
		return logger.Error
	}
}
