package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/interfaces"
	"github.com/studyhub/backend-go/internal/logger"
)

// Producer Kafka消息生产者
type Producer struct {
	producer sarama.SyncProducer
	mu       sync.RWMutex
	closed   bool
}

var _ interfaces.QueueInterface = (*Producer)(nil)

var globalProducer *Producer

// InitProducer 初始化全局Kafka生产者
func InitProducer(brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("Kafka broker列表为空")
	}

	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5
	config.Producer.Timeout = 10 * time.Second
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return fmt.Errorf("创建Kafka生产者失败: %w", err)
	}

	globalProducer = &Producer{producer: producer}
	logger.Logger.Info("kafka producer initialized", zap.Strings("brokers", brokers))
	return nil
}

// NewProducer 用现成的sarama生产者构造实例
func NewProducer(producer sarama.SyncProducer) *Producer {
	return &Producer{producer: producer}
}

// GetProducer 获取全局生产者实例，未初始化时返回nil
func GetProducer() *Producer {
	return globalProducer
}

// Publish 将消息序列化为JSON并同步发送到指定topic
func (p *Producer) Publish(ctx context.Context, topic string, message interface{}) error {
	if p == nil {
		return fmt.Errorf("Kafka生产者未初始化")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return fmt.Errorf("Kafka生产者已关闭")
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(data),
	}
	// 带分区键的消息按键路由，同一个键的事件保持顺序
	if keyed, ok := message.(interface{ PartitionKey() string }); ok {
		if key := keyed.PartitionKey(); key != "" {
			msg.Key = sarama.StringEncoder(key)
		}
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送消息到topic %s失败: %w", topic, err)
	}

	logger.Logger.Debug("kafka message sent",
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

// Close 关闭生产者连接
func (p *Producer) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.producer.Close()
}

// CloseProducer 关闭全局生产者
func CloseProducer() {
	if globalProducer == nil {
		return
	}
	if err := globalProducer.Close(); err != nil {
		logger.Logger.Warn("failed to close kafka producer", zap.Error(err))
	}
	globalProducer = nil
}
