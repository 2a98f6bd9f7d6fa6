package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)
}

// SetLogLevel aligns the package logger with the application log level.
func SetLogLevel(level logrus.Level) {
	log.SetLevel(level)
}

// connectDelays is the wait before each reconnect attempt.
var connectDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}

// InitDatabase opens the configured database, retrying while it is not
// reachable yet. Errors from the driver are translated so that unique
// violations surface as gorm.ErrDuplicatedKey.
func InitDatabase(ctx context.Context, cfg DatabaseConfig) (*gorm.DB, error) {
	driver := strings.ToLower(cfg.Driver)
	dialector, err := dialectorFor(driver, cfg)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"db_driver": driver,
		"db_host":   cfg.Host,
		"db_name":   cfg.Name,
		"db_path":   cfg.Path,
	}).Info("Initializing database connection")

	maxAttempts := len(connectDelays) + 1
	for attempt := 1; ; attempt++ {
		var db *gorm.DB
		db, err = connect(ctx, dialector)
		if err == nil {
			sqlDB, _ := db.DB()
			configureConnectionPool(sqlDB, cfg)
			log.WithFields(logrus.Fields{
				"db_driver": driver,
				"attempt":   attempt,
			}).Info("Database initialized successfully")
			return db, nil
		}

		log.WithFields(logrus.Fields{
			"attempt":      attempt,
			"max_attempts": maxAttempts,
		}).WithError(err).Warn("Database connection attempt failed")

		if attempt == maxAttempts {
			break
		}
		delay := connectDelays[attempt-1]
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", maxAttempts, err)
}

func dialectorFor(driver string, cfg DatabaseConfig) (gorm.Dialector, error) {
	switch driver {
	case "postgres", "postgresql":
		return postgres.Open(cfg.DSN()), nil
	case "sqlite", "":
		return sqlite.Open(cfg.DSN()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s (supported: postgres, sqlite)", cfg.Driver)
	}
}

func connect(ctx context.Context, dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return db, nil
}

func configureConnectionPool(sqlDB *sql.DB, cfg DatabaseConfig) {
	maxOpen := 25
	// each connection to an in-memory sqlite database sees a different database
	if cfg.InMemory() {
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(min(5, maxOpen))
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	log.WithFields(logrus.Fields{
		"max_open_conns":    maxOpen,
		"conn_max_lifetime": "5m",
	}).Debug("Connection pool configured")
}
