package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/logger"
	"github.com/studyhub/backend-go/internal/models"
)

var DB *gorm.DB

// InitDB 连接postgres并迁移摄取台账表
// 数据库未启用时返回(nil, nil)，摄取照常运行只是没有台账
func InitDB() (*gorm.DB, error) {
	cfg := config.AppConfig
	if cfg == nil {
		return nil, fmt.Errorf("config not loaded")
	}
	if !cfg.Database.Enabled {
		logger.Info("database disabled, ingestion ledger is off")
		return nil, nil
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 获取底层的sql.DB设置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 开发环境自动建表，生产以cmd/migrate的SQL版本为准
	if err := autoMigrate(db); err != nil {
		logger.Warn("ledger auto migration failed", zap.Error(err))
	}

	DB = db
	logger.Info("database connected")
	return db, nil
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&models.IngestionRun{}, &models.IngestedDocument{})
}

func CloseDB() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
