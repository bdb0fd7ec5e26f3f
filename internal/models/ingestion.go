package models

import (
	"time"
)

// 摄取运行状态
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// 单文件摄取结果状态
const (
	DocStatusIngested = "ingested"
	DocStatusSkipped  = "skipped"
)

// IngestionRun 摄取运行记录表
type IngestionRun struct {
	RunID          uint       `gorm:"primaryKey;column:run_id" json:"run_id"`
	FolderPath     string     `gorm:"column:folder_path;size:1024;not null" json:"folder_path"`
	Namespace      string     `gorm:"size:255;not null;index" json:"namespace"`
	Status         string     `gorm:"size:20;not null" json:"status"` // running/completed/failed
	FilesProcessed int        `gorm:"column:files_processed;default:0;not null" json:"files_processed"`
	FilesSkipped   int        `gorm:"column:files_skipped;default:0;not null" json:"files_skipped"`
	ChunksUpserted int        `gorm:"column:chunks_upserted;default:0;not null" json:"chunks_upserted"`
	ErrorMessage   string     `gorm:"column:error_message;size:2000" json:"error_message,omitempty"`
	StartTime      time.Time  `gorm:"column:start_time;not null" json:"start_time"`
	EndTime        *time.Time `gorm:"column:end_time" json:"end_time,omitempty"`
	CreateTime     time.Time  `gorm:"column:create_time;not null" json:"create_time"`
	UpdateTime     time.Time  `gorm:"column:update_time" json:"update_time"`
}

func (IngestionRun) TableName() string {
	return "ingestion_run"
}

// IngestedDocument 单文件摄取结果表
type IngestedDocument struct {
	DocumentID uint      `gorm:"primaryKey;column:document_id" json:"document_id"`
	RunID      uint      `gorm:"column:run_id;not null;index" json:"run_id"`
	SourcePath string    `gorm:"column:source_path;size:1024;not null" json:"source_path"`
	FileStem   string    `gorm:"column:file_stem;size:255;not null;index" json:"file_stem"`
	PDFType    string    `gorm:"column:pdf_type;size:20" json:"pdf_type"` // digital/scanned
	PageCount  int       `gorm:"column:page_count;default:0" json:"page_count"`
	ChunkCount int       `gorm:"column:chunk_count;default:0" json:"chunk_count"`
	Status     string    `gorm:"size:20;not null;index" json:"status"` // ingested/skipped
	SkipReason string    `gorm:"column:skip_reason;size:500" json:"skip_reason,omitempty"`
	ArchiveKey string    `gorm:"column:archive_key;size:1024" json:"archive_key,omitempty"`
	CreateTime time.Time `gorm:"column:create_time;not null" json:"create_time"`

	Run *IngestionRun `gorm:"foreignKey:RunID" json:"-"`
}

func (IngestedDocument) TableName() string {
	return "ingested_document"
}
