package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studyhub/backend-go/internal/logger"
)

// AnswerCache 生成结果缓存
// 相同请求在TTL窗口内原样复用上次的生成文本；redis不可用或TTL为0时整体禁用，
// 缓存读写失败只降级不报错
type AnswerCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewAnswerCache 创建缓存，client为nil或ttlSeconds<=0时返回禁用实例
func NewAnswerCache(client *redis.Client, ttlSeconds int) *AnswerCache {
	if client == nil || ttlSeconds <= 0 {
		return &AnswerCache{}
	}
	return &AnswerCache{
		client: client,
		ttl:    time.Duration(ttlSeconds) * time.Second,
	}
}

// Enabled 缓存是否启用
func (c *AnswerCache) Enabled() bool {
	return c.client != nil && c.ttl > 0
}

// Get 读取缓存的回答
func (c *AnswerCache) Get(ctx context.Context, key string) (string, bool) {
	if !c.Enabled() {
		return "", false
	}

	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("answer cache read failed", zap.Error(err))
		}
		return "", false
	}
	return val, true
}

// Set 写入回答，空文本不缓存
func (c *AnswerCache) Set(ctx context.Context, key, value string) {
	if !c.Enabled() || value == "" {
		return
	}

	if err := c.client.Set(ctx, key, value, c.ttl).Err(); err != nil {
		logger.Warn("answer cache write failed", zap.Error(err))
	}
}

// NotesCacheKey 笔记问答的缓存键，命名空间参与哈希
func NotesCacheKey(namespace, query string) string {
	return answerCacheKey("notes", namespace, query)
}

// QuizCacheKey 组卷请求的缓存键
func QuizCacheKey(level, difficulty, subject string) string {
	return answerCacheKey("quiz", level, difficulty, subject)
}

// answerCacheKey 字段间插入零字节分隔，避免拼接歧义
func answerCacheKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return "answer:" + hex.EncodeToString(h.Sum(nil))
}
