package knowledge

import (
	"context"
	"math"
	"sort"
)

// RecordMetadata 随向量一起落库的原文信息，检索命中时原样带回
type RecordMetadata struct {
	ChunkText  string
	SourceFile string
	PageNumber int
}

// VectorRecord 待写入向量库的一条记录
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata RecordMetadata
}

// RetrievalMatch 向量检索命中，按相似度从高到低返回
type RetrievalMatch struct {
	ChunkText  string
	SourceFile string
	PageNumber int
	Score      float64
}

// UpsertResult 批量写入结果
// 同一ID重复写入是覆盖而不是追加，失败的ID逐条列出。
type UpsertResult struct {
	UpsertedCount int
	FailedIDs     []string
}

// VectorStore 向量库抽象
// namespace 把不同来源的数据隔离在同一个索引里。
type VectorStore interface {
	// EnsureReady 校验索引存在且维度与配置一致
	// 返回的错误属于配置错误，调用方应当终止启动而不是重试。
	EnsureReady(ctx context.Context) error
	Upsert(ctx context.Context, namespace string, records []VectorRecord) (*UpsertResult, error)
	// Query 查询不存在的namespace返回空结果，不算错误
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]RetrievalMatch, error)
	Ready() bool
}

func vectorNorm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v * v)
	}
	return math.Sqrt(sum)
}

func cosineSimilarity(a, b []float32, normA float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	if len(a) != len(b) {
		// 尝试对齐长度
		minLen := len(a)
		if len(b) < minLen {
			minLen = len(b)
		}
		a = a[:minLen]
		b = b[:minLen]
	}

	var dot float64
	var normB float64
	for i := range a {
		dot += float64(a[i] * b[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (normA * math.Sqrt(normB))
}

func sortMatchesByScore(matches []RetrievalMatch) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].SourceFile != matches[j].SourceFile {
			return matches[i].SourceFile < matches[j].SourceFile
		}
		return matches[i].PageNumber < matches[j].PageNumber
	})
}
