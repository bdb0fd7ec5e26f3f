package database

import (
	"context"
	"database/sql"
	"fmt"

	"gorm.io/gorm"

	"github.com/studyhub/backend-go/internal/interfaces"
)

// DatabaseWrapper 把已打开的gorm连接包成DatabaseInterface，附带健康检查
type DatabaseWrapper struct {
	db            *gorm.DB
	sqlDB         *sql.DB
	healthChecker *HealthChecker
}

var _ interfaces.DatabaseInterface = (*DatabaseWrapper)(nil)

// NewDatabaseWrapper 包装一个已建立的连接
func NewDatabaseWrapper(db *gorm.DB) (*DatabaseWrapper, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	return &DatabaseWrapper{
		db:            db,
		sqlDB:         sqlDB,
		healthChecker: NewHealthChecker(sqlDB),
	}, nil
}

// GetDB 返回gorm连接
func (w *DatabaseWrapper) GetDB() *gorm.DB {
	return w.db
}

// Close 关闭底层连接
func (w *DatabaseWrapper) Close() error {
	w.healthChecker.Stop()
	return w.sqlDB.Close()
}

// HealthCheck 读后台检查的缓存状态，没跑后台时做一次同步ping
func (w *DatabaseWrapper) HealthCheck() error {
	if w.healthChecker.IsHealthy() {
		return nil
	}
	return w.healthChecker.Check(context.Background())
}

// StartHealthChecker 启动后台健康检查
func (w *DatabaseWrapper) StartHealthChecker(ctx context.Context) {
	go w.healthChecker.Start(ctx)
}

// HealthResult 健康检查快照
func (w *DatabaseWrapper) HealthResult() HealthCheckResult {
	return w.healthChecker.GetHealthResult()
}
