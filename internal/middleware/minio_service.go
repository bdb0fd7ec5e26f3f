package middleware

import (
	"context"

	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/config"
	"github.com/studyhub/backend-go/internal/logger"
	"github.com/studyhub/backend-go/internal/storage"
)

// MinIOService 源文件归档服务
type MinIOService struct {
	archiver *storage.MinioArchiver
}

var globalMinIOService *MinIOService

// NewMinIOService 创建归档服务，归档未启用时返回nil服务
func NewMinIOService() (*MinIOService, error) {
	if globalMinIOService != nil {
		return globalMinIOService, nil
	}

	cfg := config.AppConfig.Ingest.Archive
	if !cfg.Enabled {
		logger.Logger.Info("source archival disabled")
		return nil, nil
	}

	archiver, err := storage.NewMinioArchiver(cfg)
	if err != nil {
		return nil, err
	}

	globalMinIOService = &MinIOService{archiver: archiver}
	logger.Logger.Info("source archival enabled", zap.String("bucket", archiver.Bucket()))
	return globalMinIOService, nil
}

// GetMinIOService 获取全局归档服务实例，未启用时为nil
func GetMinIOService() *MinIOService {
	return globalMinIOService
}

// Archiver 获取归档器，服务未启用时返回nil
func (s *MinIOService) Archiver() *storage.MinioArchiver {
	if s == nil {
		return nil
	}
	return s.archiver
}

// HealthCheck 探活对象存储
func (s *MinIOService) HealthCheck(ctx context.Context) error {
	return s.archiver.Ping(ctx)
}

// Ready 检查服务是否就绪
func (s *MinIOService) Ready() bool {
	return s != nil && s.archiver.Ready()
}
