package repository

import (
	"context"
	stderrors "errors"
	"time"

	"gorm.io/gorm"

	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/models"
)

// IngestionRepository 摄取台账仓库
type IngestionRepository interface {
	CreateRun(ctx context.Context, run *models.IngestionRun) error
	FinishRun(ctx context.Context, run *models.IngestionRun) error
	RecordDocument(ctx context.Context, doc *models.IngestedDocument) error
	ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error)
	GetRun(ctx context.Context, runID uint) (*models.IngestionRun, []models.IngestedDocument, error)
}

type ingestionRepository struct {
	db *gorm.DB
}

// NewIngestionRepository 创建台账仓库
func NewIngestionRepository(db *gorm.DB) IngestionRepository {
	return &ingestionRepository{db: db}
}

// CreateRun 新建运行记录，回填RunID
func (r *ingestionRepository) CreateRun(ctx context.Context, run *models.IngestionRun) error {
	now := time.Now()
	run.CreateTime = now
	run.UpdateTime = now
	if err := r.db.WithContext(ctx).Create(run).Error; err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "创建摄取运行记录失败").WithCause(err)
	}
	return nil
}

// FinishRun 回写运行汇总
func (r *ingestionRepository) FinishRun(ctx context.Context, run *models.IngestionRun) error {
	updates := map[string]interface{}{
		"status":          run.Status,
		"files_processed": run.FilesProcessed,
		"files_skipped":   run.FilesSkipped,
		"chunks_upserted": run.ChunksUpserted,
		"error_message":   run.ErrorMessage,
		"end_time":        run.EndTime,
		"update_time":     time.Now(),
	}
	err := r.db.WithContext(ctx).Model(&models.IngestionRun{}).
		Where("run_id = ?", run.RunID).
		Updates(updates).Error
	if err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "更新摄取运行记录失败").WithCause(err)
	}
	return nil
}

// RecordDocument 写入单文件结果
func (r *ingestionRepository) RecordDocument(ctx context.Context, doc *models.IngestedDocument) error {
	doc.CreateTime = time.Now()
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return errors.NewSystemError(errors.ErrCodeDatabaseError, "写入文件摄取结果失败").WithCause(err)
	}
	return nil
}

// ListRuns 按时间倒序取最近的运行
func (r *ingestionRepository) ListRuns(ctx context.Context, limit int) ([]models.IngestionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.IngestionRun
	err := r.db.WithContext(ctx).
		Order("run_id DESC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "查询摄取历史失败").WithCause(err)
	}
	return runs, nil
}

// GetRun 取单次运行及其所有文件结果
func (r *ingestionRepository) GetRun(ctx context.Context, runID uint) (*models.IngestionRun, []models.IngestedDocument, error) {
	var run models.IngestionRun
	err := r.db.WithContext(ctx).Where("run_id = ?", runID).First(&run).Error
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, errors.NewNotFoundError("ingestion run")
		}
		return nil, nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "查询摄取运行失败").WithCause(err)
	}

	var docs []models.IngestedDocument
	err = r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("source_path").
		Find(&docs).Error
	if err != nil {
		return nil, nil, errors.NewSystemError(errors.ErrCodeDatabaseError, "查询文件摄取结果失败").WithCause(err)
	}
	return &run, docs, nil
}
