package database

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
)

func TestHealthCheckerCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	hc := NewHealthChecker(db)

	mock.ExpectPing()
	assert.NoError(t, hc.Check(context.Background()))
	assert.True(t, hc.IsHealthy())

	mock.ExpectPing().WillReturnError(assert.AnError)
	assert.Error(t, hc.Check(context.Background()))
	assert.False(t, hc.IsHealthy())

	result := hc.GetHealthResult()
	assert.False(t, result.Healthy)
	assert.NotEmpty(t, result.LastError)
	assert.False(t, result.LastCheck.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthCheckerWaitForHealthy(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	hc := NewHealthChecker(db)

	mock.ExpectPing()
	require.NoError(t, hc.Check(context.Background()))

	assert.NoError(t, hc.WaitForHealthy(context.Background(), time.Second))
}

func TestHealthCheckerWaitTimesOut(t *testing.T) {
	db, _, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	hc := NewHealthChecker(db)

	err = hc.WaitForHealthy(context.Background(), 50*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDatabaseWrapper(t *testing.T) {
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger:               gormlogger.Default.LogMode(gormlogger.Silent),
		DisableAutomaticPing: true,
	})
	require.NoError(t, err)

	wrapper, err := NewDatabaseWrapper(db)
	require.NoError(t, err)
	assert.Same(t, db, wrapper.GetDB())

	mock.ExpectPing()
	assert.NoError(t, wrapper.HealthCheck())

	// 后台检查已标记健康，再次调用不再打数据库
	assert.NoError(t, wrapper.HealthCheck())
	assert.NoError(t, mock.ExpectationsWereMet())
}
