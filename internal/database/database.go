// Package database opens the gorm connection and prepares the schema.
package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"inkwell/internal/config"
	"inkwell/internal/middleware"
	"inkwell/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// slowQuery is the duration above which statements are logged as slow.
const slowQuery = 200 * time.Millisecond

// QueryLogger routes gorm's logging into the application's slog logger.
type QueryLogger struct {
	log   *slog.Logger
	level logger.LogLevel
}

// NewGormLogger reports failed and slow statements to l.
func NewGormLogger(l *slog.Logger) *QueryLogger {
	return &QueryLogger{log: l, level: logger.Warn}
}

func (l *QueryLogger) LogMode(level logger.LogLevel) logger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, logger.Info, slog.LevelInfo, msg, data...)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, logger.Warn, slog.LevelWarn, msg, data...)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.printf(ctx, logger.Error, slog.LevelError, msg, data...)
}

func (l *QueryLogger) printf(ctx context.Context, threshold logger.LogLevel, lvl slog.Level, msg string, data ...interface{}) {
	if l.level >= threshold {
		l.log.Log(ctx, lvl, fmt.Sprintf(msg, data...))
	}
}

// Trace logs failed statements, slow statements and, at Info level, every
// statement. Missing rows are not failures here; repositories map them.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	attrs := []any{"sql", sql, "rows", rows, "elapsed", elapsed}

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		l.log.ErrorContext(ctx, "query failed", append(attrs, "error", err.Error())...)
	case elapsed > slowQuery && l.level >= logger.Warn:
		l.log.WarnContext(ctx, "slow query", attrs...)
	case l.level >= logger.Info:
		l.log.InfoContext(ctx, "query", attrs...)
	}
}

// Dialector picks the gorm driver for cfg.DBDriver.
func Dialector(cfg *config.Config) gorm.Dialector {
	if cfg.DBDriver == "sqlite" {
		return sqlite.Open(cfg.SQLitePath)
	}

	sslMode := cfg.DBSSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, sslMode,
	)
	return postgres.Open(dsn)
}

// Connect opens the database described by cfg. Outside production the schema
// is created or extended with AutoMigrate.
func Connect(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(Dialector(cfg), &gorm.Config{
		Logger: NewGormLogger(middleware.Logger),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	middleware.Logger.Info("Database connected successfully", slog.String("driver", cfg.DBDriver))

	if !cfg.IsProduction() {
		if err := AutoMigrate(db); err != nil {
			return nil, err
		}
		middleware.Logger.Info("Database schema synchronized")
	}

	sqlDB, err := db.DB()
	if err == nil {
		if cfg.DBDriver == "sqlite" {
			// sqlite serializes writers; one connection avoids SQLITE_BUSY.
			sqlDB.SetMaxOpenConns(1)
		} else {
			sqlDB.SetMaxOpenConns(25)
			sqlDB.SetMaxIdleConns(5)
			sqlDB.SetConnMaxLifetime(5 * time.Minute)
		}
	}

	return db, nil
}

// AutoMigrate creates every table the application uses.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.Attachment{},
		&models.Article{},
		&models.ArticleLike{},
		&models.ArticleAttachment{},
		&models.Comment{},
		&models.ArticleComment{},
		&models.CommentReply{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping checks connectivity with a bounded timeout.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
