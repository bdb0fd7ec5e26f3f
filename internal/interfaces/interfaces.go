package interfaces

import (
	"context"

	"gorm.io/gorm"
)

// DatabaseInterface 数据库接口
type DatabaseInterface interface {
	GetDB() *gorm.DB
	Close() error
	HealthCheck() error
}

// QueueInterface 消息队列接口
type QueueInterface interface {
	Publish(ctx context.Context, topic string, message interface{}) error
	Close() error
}

// MetricsInterface 监控指标接口
type MetricsInterface interface {
	IncrementCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

// RegistryInterface 服务注册接口，consul与etcd实现可互换
type RegistryInterface interface {
	Register(ctx context.Context) error
	Deregister() error
}
