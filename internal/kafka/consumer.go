package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/interfaces"
	"github.com/studyhub/backend-go/internal/logger"
)

// MessageHandler 消息处理函数，返回错误时消息不提交位点，等待重投
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// Consumer Kafka消费者组
type Consumer struct {
	group    sarama.ConsumerGroup
	groupID  string
	handlers map[string]MessageHandler
	metrics  interfaces.MetricsInterface
	mu       sync.RWMutex
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

var globalConsumer *Consumer

// InitConsumer 创建全局消费者组，注册处理器后调用Start开始消费
func InitConsumer(brokers []string, groupID string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("Kafka broker列表为空")
	}
	if groupID == "" {
		return fmt.Errorf("消费者组ID为空")
	}

	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.NewBalanceStrategyRoundRobin()
	config.Consumer.Offsets.Initial = sarama.OffsetOldest
	config.Consumer.Return.Errors = true
	config.Version = sarama.V2_6_0_0

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return fmt.Errorf("创建Kafka消费者组失败: %w", err)
	}

	globalConsumer = &Consumer{
		group:    group,
		groupID:  groupID,
		handlers: make(map[string]MessageHandler),
	}
	logger.Logger.Info("kafka consumer group initialized",
		zap.Strings("brokers", brokers),
		zap.String("group_id", groupID))
	return nil
}

// GetConsumer 获取全局消费者实例，未初始化时返回nil
func GetConsumer() *Consumer {
	return globalConsumer
}

// RegisterHandler 为topic注册处理器，必须在Start之前完成
func (c *Consumer) RegisterHandler(topic string, handler MessageHandler) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	logger.Logger.Info("kafka handler registered", zap.String("topic", topic))
}

// SetMetrics 设置消费指标上报，必须在Start之前调用
func (c *Consumer) SetMetrics(m interfaces.MetricsInterface) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
}

// recordHandle 上报单条消息的消费结果
func (c *Consumer) recordHandle(topic string, elapsed time.Duration, err error) {
	c.mu.RLock()
	m := c.metrics
	c.mu.RUnlock()
	if m == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	labels := map[string]string{"topic": topic, "status": status}
	m.IncrementCounter("kafka_messages_consumed_total", labels)
	m.ObserveHistogram("kafka_handle_duration_seconds", elapsed.Seconds(), labels)
}

// Start 启动消费循环，消费所有已注册的topic
func (c *Consumer) Start(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("Kafka消费者未初始化")
	}
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("消费者已启动")
	}
	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	if len(topics) == 0 {
		c.mu.Unlock()
		return fmt.Errorf("未注册任何消息处理器")
	}
	c.started = true
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	handler := &consumerGroupHandler{consumer: c}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.group.Consume(runCtx, topics, handler); err != nil {
				logger.Logger.Error("kafka consume loop error", zap.Error(err))
				select {
				case <-runCtx.Done():
					return
				case <-time.After(5 * time.Second):
				}
			}
			if runCtx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.group.Errors() {
			logger.Logger.Error("kafka consumer group error", zap.Error(err))
		}
	}()

	logger.Logger.Info("kafka consumer started", zap.String("topics", strings.Join(topics, ",")))
	return nil
}

// Close 停止消费并关闭连接
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()
	err := c.group.Close()
	c.wg.Wait()
	return err
}

// CloseConsumer 关闭全局消费者
func CloseConsumer() {
	if globalConsumer == nil {
		return
	}
	if err := globalConsumer.Close(); err != nil {
		logger.Logger.Warn("failed to close kafka consumer", zap.Error(err))
	}
	globalConsumer = nil
}

type consumerGroupHandler struct {
	consumer *Consumer
}

func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	logger.Logger.Info("kafka consumer session started",
		zap.String("member_id", session.MemberID()))
	return nil
}

func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	logger.Logger.Info("kafka consumer session stopped",
		zap.String("member_id", session.MemberID()))
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		h.consumer.mu.RLock()
		handler, ok := h.consumer.handlers[message.Topic]
		h.consumer.mu.RUnlock()
		if !ok {
			logger.Logger.Warn("no handler for kafka topic",
				zap.String("topic", message.Topic))
			session.MarkMessage(message, "")
			continue
		}

		start := time.Now()
		err := handler(session.Context(), message)
		h.consumer.recordHandle(message.Topic, time.Since(start), err)
		if err != nil {
			// 处理失败不提交位点，消息等待下一次投递
			logger.Logger.Error("kafka message handling failed",
				zap.String("topic", message.Topic),
				zap.Int32("partition", message.Partition),
				zap.Int64("offset", message.Offset),
				zap.Error(err))
			continue
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// IngestRequestMessage 异步摄取请求，由HTTP层投递、消费者侧执行
type IngestRequestMessage struct {
	Folder    string `json:"folder"`
	Namespace string `json:"namespace,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// PartitionKey 同一命名空间的摄取请求按序处理
func (m IngestRequestMessage) PartitionKey() string {
	return m.Namespace
}

// ParseIngestRequest 解析摄取请求消息体
func ParseIngestRequest(data []byte) (*IngestRequestMessage, error) {
	var msg IngestRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("解析摄取请求失败: %w", err)
	}
	if strings.TrimSpace(msg.Folder) == "" {
		return nil, fmt.Errorf("摄取请求缺少folder字段")
	}
	return &msg, nil
}
