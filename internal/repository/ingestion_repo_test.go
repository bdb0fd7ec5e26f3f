package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/studyhub/backend-go/internal/errors"
	"github.com/studyhub/backend-go/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestCreateRunAssignsID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "ingestion_run"`).
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}).AddRow(7))
	mock.ExpectCommit()

	run := &models.IngestionRun{
		FolderPath: "/data/notes",
		Namespace:  "grade-five",
		Status:     models.RunStatusRunning,
		StartTime:  time.Now(),
	}
	err := repo.CreateRun(context.Background(), run)
	assert.NoError(t, err)
	assert.Equal(t, uint(7), run.RunID)
	assert.False(t, run.CreateTime.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFinishRunUpdatesSummary(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "ingestion_run" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	now := time.Now()
	run := &models.IngestionRun{
		RunID:          7,
		Status:         models.RunStatusCompleted,
		FilesProcessed: 3,
		FilesSkipped:   1,
		ChunksUpserted: 42,
		EndTime:        &now,
	}
	assert.NoError(t, repo.FinishRun(context.Background(), run))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordDocument(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "ingested_document"`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id"}).AddRow(31))
	mock.ExpectCommit()

	doc := &models.IngestedDocument{
		RunID:      7,
		SourcePath: "/data/notes/science.pdf",
		FileStem:   "science",
		PDFType:    "digital",
		PageCount:  12,
		ChunkCount: 40,
		Status:     models.DocStatusIngested,
	}
	assert.NoError(t, repo.RecordDocument(context.Background(), doc))
	assert.Equal(t, uint(31), doc.DocumentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRunsOrdersNewestFirst(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestionRepository(db)

	rows := sqlmock.NewRows([]string{"run_id", "folder_path", "namespace", "status"}).
		AddRow(9, "/data/b", "grade-five", models.RunStatusCompleted).
		AddRow(8, "/data/a", "grade-five", models.RunStatusFailed)
	mock.ExpectQuery(`SELECT \* FROM "ingestion_run" ORDER BY run_id DESC`).
		WillReturnRows(rows)

	runs, err := repo.ListRuns(context.Background(), 10)
	assert.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, uint(9), runs[0].RunID)
	assert.Equal(t, models.RunStatusFailed, runs[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunWithDocuments(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestionRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "ingestion_run" WHERE run_id =`).
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "folder_path", "namespace", "status"}).
			AddRow(7, "/data/notes", "grade-five", models.RunStatusCompleted))
	mock.ExpectQuery(`SELECT \* FROM "ingested_document" WHERE run_id =`).
		WillReturnRows(sqlmock.NewRows([]string{"document_id", "run_id", "source_path", "status", "skip_reason"}).
			AddRow(1, 7, "/data/notes/broken.pdf", models.DocStatusSkipped, "文件解析失败: 解析PDF失败").
			AddRow(2, 7, "/data/notes/science.pdf", models.DocStatusIngested, ""))

	run, docs, err := repo.GetRun(context.Background(), 7)
	assert.NoError(t, err)
	assert.Equal(t, "grade-five", run.Namespace)
	assert.Len(t, docs, 2)
	assert.Equal(t, models.DocStatusSkipped, docs[0].Status)
	assert.NotEmpty(t, docs[0].SkipReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewIngestionRepository(db)

	mock.ExpectQuery(`SELECT \* FROM "ingestion_run" WHERE run_id =`).
		WillReturnRows(sqlmock.NewRows([]string{"run_id"}))

	_, _, err := repo.GetRun(context.Background(), 404)
	assert.Error(t, err)
	assert.Equal(t, errors.ErrCodeResourceNotFound, errors.GetAppError(err).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
