package database

import (
	"context"
	"fmt"
	"time"

	"InactivityBot/logger"
	"InactivityBot/models"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const healthCheckInterval = time.Minute

// Connect opens the MySQL database at dsn, retrying every reconnectDelay
// until it succeeds or ctx is cancelled, then migrates the schema.
func Connect(ctx context.Context, dsn string, reconnectDelay time.Duration) (*gorm.DB, error) {
	return ConnectDialector(ctx, mysql.Open(dsn), reconnectDelay)
}

// ConnectDialector is Connect for an arbitrary gorm dialector.
func ConnectDialector(ctx context.Context, dialector gorm.Dialector, reconnectDelay time.Duration) (*gorm.DB, error) {
	var db *gorm.DB

	operation := func() error {
		logger.Log.Info("Attempting to connect to database...")
		conn, err := gorm.Open(dialector, &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		})
		if err != nil {
			return err
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return err
		}

		db = conn
		return nil
	}

	notify := func(err error, next time.Duration) {
		logger.Log.WithError(err).Errorf("Database connection error, retrying in %v", next)
	}

	b := backoff.WithContext(backoff.NewConstantBackOff(reconnectDelay), ctx)
	if err := backoff.RetryNotify(operation, b, notify); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logger.Log.Info("Connected to database successfully")

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	// Set connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.UserActivity{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database models: %w", err)
	}
	return nil
}

// Ping reports whether the database answers.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// MonitorHealth pings the database periodically. When a ping fails it keeps
// reconnecting every reconnectDelay until the database answers again.
func MonitorHealth(ctx context.Context, db *gorm.DB, reconnectDelay time.Duration) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := Ping(ctx, db); err == nil {
			sqlDB, _ := db.DB()
			stats := sqlDB.Stats()
			logger.Log.Debugf("DB Stats - Open connections: %d, In use: %d, Idle: %d", stats.OpenConnections, stats.InUse, stats.Idle)
			continue
		}

		logger.Log.Error("Database disconnected! Attempting to reconnect...")
		if err := Reconnect(ctx, db, reconnectDelay); err != nil {
			logger.Log.WithError(err).Warn("Stopped reconnecting to database")
			return
		}
		logger.Log.Info("Reconnected to database")
	}
}

// Reconnect blocks until db answers a ping or ctx is cancelled.
func Reconnect(ctx context.Context, db *gorm.DB, reconnectDelay time.Duration) error {
	operation := func() error {
		return Ping(ctx, db)
	}
	notify := func(err error, next time.Duration) {
		logger.Log.WithError(err).Errorf("Database still unreachable, retrying in %v", next)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(backoff.NewConstantBackOff(reconnectDelay), ctx), notify)
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
